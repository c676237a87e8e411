package task

// Wakes up a triggered subtask. Fires that arrive while the subtask is busy
// collapse into one run.
type Trigger chan struct{}

func NewTrigger() Trigger {
	return make(Trigger, 1)
}

func (self Trigger) Fire() {
	select {
	case self <- struct{}{}:
	default:
	}
}
