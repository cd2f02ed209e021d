package common

import (
	"log"
	"strings"
)

type teardownStep struct {
	name    string
	release func()
}

// Teardown is an ordered list of release functions. Objects push their release right after they were created
// successfully, Release runs the list in reverse creation order. A setup that fails half way thus destroys
// exactly the objects that exist.
type Teardown struct {
	steps []teardownStep
}

func (t *Teardown) Push(name string, release func()) {
	t.steps = append(t.steps, teardownStep{name: name, release: release})
}

// Len is the number of pending release functions.
func (t *Teardown) Len() int {
	return len(t.steps)
}

// names lists the pending steps in the order they will be released.
func (t *Teardown) names() []string {
	names := make([]string, 0, len(t.steps))
	for i := len(t.steps) - 1; i >= 0; i-- {
		names = append(names, t.steps[i].name)
	}
	return names
}

// Release runs all pending steps, last pushed first, and empties the list. Calling it again is a no-op.
func (t *Teardown) Release() {
	if len(t.steps) == 0 {
		return
	}
	log.Printf("Releasing %s", strings.Join(t.names(), ", "))
	for i := len(t.steps) - 1; i >= 0; i-- {
		t.steps[i].release()
	}
	t.steps = nil
}
