package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PORTCULLIS_TEST_MODE") == "" {
			_ = os.Setenv("PORTCULLIS_TEST_MODE", "1")
		}
	})
}
