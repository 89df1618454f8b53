package harness

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/cycle/internal/loop"
)

// Program is a built-in loop program over string models, events and effects.
type Program struct {
	Name   string
	Update loop.Update[string, string, string]

	// Init is optional.
	Init loop.Init[string, string]

	// Handle runs on the effect goroutine for every effect and may feed
	// events back through output before returning.
	Handle func(effect string, output loop.Consumer[string])
}

var programs = map[string]Program{
	"append": {
		Name:   "append",
		Update: appendUpdate,
		Init:   appendInit,
		Handle: func(string, loop.Consumer[string]) {},
	},
	"counter": {
		Name:   "counter",
		Update: counterUpdate,
		Init:   counterInit,
		Handle: counterHandle,
	},
}

// LookupProgram returns the built-in program with the given name.
func LookupProgram(name string) (Program, bool) {
	p, ok := programs[name]
	return p, ok
}

// ProgramNames returns the names of all built-in programs, sorted.
func ProgramNames() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// append: the model is the concatenation of every event.

func appendUpdate(model, event string) loop.Next[string, string] {
	return loop.Updated[string, string](model + event)
}

func appendInit(model string) loop.First[string, string] {
	return loop.StartWith[string, string](model + "-init")
}

// counter: the model is a decimal count.
//
//	inc     count+1
//	dec     count-1, or an "underflow" effect at zero
//	save    "checkpoint:<count>" effect; the handler answers "saved"
//	loaded  count+10 (the handler's answer to the "load" effect)
//
// Every other event leaves the model unchanged. Init turns an empty seed into
// "0" and requests a "load".

const (
	effectLoad       = "load"
	effectUnderflow  = "underflow"
	checkpointPrefix = "checkpoint:"
)

func counterUpdate(model, event string) loop.Next[string, string] {
	n, _ := strconv.Atoi(model)

	switch event {
	case "inc":
		return loop.Updated[string, string](strconv.Itoa(n + 1))
	case "dec":
		if n <= 0 {
			return loop.Unchanged[string](effectUnderflow)
		}
		return loop.Updated[string, string](strconv.Itoa(n - 1))
	case "save":
		return loop.Unchanged[string](checkpointPrefix + strconv.Itoa(n))
	case "loaded":
		return loop.Updated[string, string](strconv.Itoa(n + 10))
	default:
		return loop.NoChange[string, string]()
	}
}

func counterInit(seed string) loop.First[string, string] {
	if seed == "" {
		return loop.StartWith("0", effectLoad)
	}
	return loop.StartWith[string, string](seed)
}

func counterHandle(effect string, output loop.Consumer[string]) {
	switch {
	case effect == effectLoad:
		output("loaded")
	case strings.HasPrefix(effect, checkpointPrefix):
		output("saved")
	}
}
