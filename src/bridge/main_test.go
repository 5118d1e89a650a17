package bridge

import "time"

var testTime = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
