package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task is the decoded form of a UPID, e.g.
// UPID:localhost:000BC66A:1279E395:521EFC4E:vzcreate:200:root@pam:
//
// Decoding a UPID says nothing about the task's progress.
type Task struct {
	Node      string
	PID       uint64
	PStart    uint64
	StartTime time.Time
	Type      string
	ID        string
	User      string
}

func ParseUPID(id TaskID) (*Task, error) {
	parts := strings.Split(string(id), ":")
	if len(parts) < 8 || parts[0] != "UPID" {
		return nil, fmt.Errorf("malformed task id %q", id)
	}

	pid, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed pid in task id %q: %w", id, err)
	}

	pstart, err := strconv.ParseUint(parts[3], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed pstart in task id %q: %w", id, err)
	}

	start, err := strconv.ParseInt(parts[4], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed start time in task id %q: %w", id, err)
	}

	return &Task{
		Node:      parts[1],
		PID:       pid,
		PStart:    pstart,
		StartTime: time.Unix(start, 0).UTC(),
		Type:      parts[5],
		ID:        parts[6],
		User:      parts[7],
	}, nil
}
