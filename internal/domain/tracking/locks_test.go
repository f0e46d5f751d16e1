package tracking

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyedMutex(t *testing.T) {
	Convey("Given a keyed mutex", t, func() {
		km := newKeyedMutex()

		Convey("Holders of the same key are serialized", func() {
			var (
				wg      sync.WaitGroup
				inside  int
				maxSeen int
				mu      sync.Mutex
			)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := km.Lock("run-1")
					mu.Lock()
					inside++
					if inside > maxSeen {
						maxSeen = inside
					}
					mu.Unlock()

					mu.Lock()
					inside--
					mu.Unlock()
					unlock()
				}()
			}
			wg.Wait()
			So(maxSeen, ShouldEqual, 1)
		})

		Convey("Different keys do not block each other", func() {
			unlockA := km.Lock("a")
			unlockB := km.Lock("b")
			So(km.Len(), ShouldEqual, 2)
			unlockA()
			unlockB()
		})

		Convey("Released keys are forgotten", func() {
			km.Lock("x")()
			So(km.Len(), ShouldEqual, 0)
		})
	})
}
