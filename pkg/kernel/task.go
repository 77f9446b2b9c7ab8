package kernel

import (
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Task is a decoded task_struct context.
type Task struct {
	Addr  uint64
	PID   int32
	CPU   int32 // -1 when the layout does not expose task_struct.cpu
	Comm  string
	files uint64
	fs    uint64
}

// maxTasks bounds the task list walk against corrupt dumps.
const maxTasks = 1 << 18

// TaskAt decodes the task_struct at addr.
func (k *Kernel) TaskAt(addr uint64) (*Task, error) {
	pid, err := k.dec.U32(addr + k.lay.taskPID)
	if err != nil {
		return nil, errors.Wrapf(err, "task %#x: pid", addr)
	}
	comm, err := k.dec.FixedString(addr+k.lay.taskComm, k.lay.commLen)
	if err != nil {
		return nil, errors.Wrapf(err, "task %#x: comm", addr)
	}
	files, err := k.dec.Ptr(addr + k.lay.taskFiles)
	if err != nil {
		return nil, errors.Wrapf(err, "task %#x: files", addr)
	}
	fs, err := k.dec.Ptr(addr + k.lay.taskFS)
	if err != nil {
		return nil, errors.Wrapf(err, "task %#x: fs", addr)
	}

	t := &Task{
		Addr:  addr,
		PID:   int32(pid),
		CPU:   -1,
		Comm:  comm,
		files: files,
		fs:    fs,
	}
	if k.lay.hasTaskCPU {
		cpu, err := k.dec.U32(addr + k.lay.taskCPU)
		if err != nil {
			return nil, errors.Wrapf(err, "task %#x: cpu", addr)
		}
		t.CPU = int32(cpu)
	}
	log.Debugf("decoded task: %v", spew.Sdump(t))
	return t, nil
}

// Tasks walks the circular tasks list anchored at init_task and returns
// every process context, init_task first.
func (k *Kernel) Tasks() ([]*Task, error) {
	var tasks []*Task
	seen := map[uint64]bool{}
	addr := k.initTask
	for {
		if seen[addr] {
			return nil, errors.Errorf("task list loops back to %#x before reaching init_task", addr)
		}
		if len(tasks) >= maxTasks {
			return nil, errors.New("task list exceeds sanity bound")
		}
		seen[addr] = true

		t, err := k.TaskAt(addr)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)

		next, err := k.dec.Ptr(addr + k.lay.taskTasks)
		if err != nil {
			return nil, errors.Wrapf(err, "task %#x: tasks.next", addr)
		}
		addr = next - k.lay.taskTasks
		if addr == k.initTask {
			return tasks, nil
		}
	}
}

// TaskByPID finds the context with the given pid.
func (k *Kernel) TaskByPID(pid int32) (*Task, error) {
	tasks, err := k.Tasks()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.PID == pid {
			return t, nil
		}
	}
	return nil, errors.Errorf("no task with pid %v", pid)
}

// LookupContext resolves a command line context argument: a decimal PID or
// a hexadecimal task_struct address. All-decimal input is tried as a PID
// first, matching the original command's convention.
func (k *Kernel) LookupContext(arg string) (*Task, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(arg), "0x")
	if pid, err := strconv.ParseInt(arg, 10, 32); err == nil {
		if t, err := k.TaskByPID(int32(pid)); err == nil {
			return t, nil
		}
	}
	addr, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return nil, errors.Errorf("%q is neither a pid nor a task address", arg)
	}
	t, err := k.TaskAt(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving context %q", arg)
	}
	return t, nil
}
