package emath

import(
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// MedianFilter replaces each sample with the median of the size x size
// window centred on it. Edges are mirrored, as in GaussianBlur. A window
// reaching further than the raster along an axis is cut down to 2n-1 on
// that axis, so memory stays bounded by the raster, not by size. Rows are
// farmed out to a pool of goroutines; each row is written by exactly one
// worker, so the output doesn't depend on scheduling.
func (g1 FloatGrid)MedianFilter(size int) FloatGrid {
	if size < 1 || size%2 == 0 {
		panic(fmt.Sprintf("MedianFilter: window size must be odd and positive, got %d", size))
	}

	g2 := g1.NewFromThis()
	if size == 1 {
		copy(g2.values, g1.values)
		return g2
	}

	width := g1.Dx()
	height := g1.Dy()
	halfX := min(size/2, width-1)
	halfY := min(size/2, height-1)

	var wg sync.WaitGroup
	rowsChan := make(chan int, height)

	nWorkers := min(runtime.NumCPU(), height)
	for i:=0; i<nWorkers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			window := make([]float64, (2*halfX+1)*(2*halfY+1))
			for y := range rowsChan {
				for x:=0; x<width; x++ {
					n := 0
					for dy:=-halfY; dy<=halfY; dy++ {
						yy := reflectIndex(y+dy, height)
						for dx:=-halfX; dx<=halfX; dx++ {
							window[n] = g1.Get(reflectIndex(x+dx, width), yy)
							n++
						}
					}
					sort.Float64s(window)
					g2.Set(x, y, window[len(window)/2])
				}
			}
		}()
	}

	for y:=0; y<height; y++ {
		rowsChan<- y
	}
	close(rowsChan)
	wg.Wait()

	return g2
}
