package clock

import "time"

func wallNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
