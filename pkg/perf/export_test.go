package perf

import "time"

func (t *Tracker) SetNow(now func() time.Time) { t.now = now }
