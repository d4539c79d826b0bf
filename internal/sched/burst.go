package sched

// OnRunning records the start of a run and credits any pending
// enqueue->run latency sample exactly once (spec §3, §4.4, §8).
func (e *Engine) OnRunning(cpu int, tc *TaskCtx, pid int32, nowNs int64) {
	tc.mu.Lock()
	tc.LastRunNs = nowNs
	enqueueNs := tc.EnqueueNs
	tc.EnqueueNs = 0
	class := tc.Class
	gaming := tc.IsGaming
	die := e.cpuCtx[cpu].Die
	tc.mu.Unlock()

	if enqueueNs != 0 {
		latency := nowNs - enqueueNs
		e.global.creditLatency(latency, gaming)
		if latency > 1_000_000 {
			e.pushEvent(Event{TimestampNs: uint64(nowNs), Type: EventHighLatency, PID: uint32(pid), CPU: uint32(cpu), Die: uint32(die), V1: uint64(latency)})
		}
	}

	e.dieLoad[die].incr(gaming)
	e.runState[cpu].set(class, pid, nowNs)
}

// OnStopping applies the burst-tracking rule (spec §4.4): running time
// since last sleep accumulates if the task is still runnable, and
// resets to zero on a voluntary sleep.
func (e *Engine) OnStopping(cpu int, tc *TaskCtx, nowNs int64, stillRunnable bool) {
	tc.mu.Lock()
	if stillRunnable {
		tc.BurstNs += nowNs - tc.LastRunNs
	} else {
		tc.BurstNs = 0
	}
	gaming := tc.IsGaming
	tc.mu.Unlock()

	die := e.cpuCtx[cpu].Die
	e.dieLoad[die].decr(gaming)
	e.runState[cpu].clear()
}
