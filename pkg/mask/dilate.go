package mask

// Dilate grows true regions of a row-major mask by radius pixels with a
// square structuring element, in place. Two separable passes (rows then
// columns) with a sliding window count keep it linear in the mask size.
func Dilate(m []bool, width, height, radius int) {
	if radius <= 0 {
		return
	}

	smear := func(get func(i int) bool, set func(i int, v bool), n int) {
		count := 0

		// prime the window [0, radius]
		for i := 0; i <= radius && i < n; i++ {
			if get(i) {
				count++
			}
		}

		out := make([]bool, n)
		for i := 0; i < n; i++ {
			out[i] = count > 0

			if j := i + radius + 1; j < n && get(j) {
				count++
			}
			if j := i - radius; j >= 0 && get(j) {
				count--
			}
		}

		for i := 0; i < n; i++ {
			set(i, out[i])
		}
	}

	for y := 0; y < height; y++ {
		row := m[y*width : (y+1)*width]
		smear(func(i int) bool { return row[i] }, func(i int, v bool) { row[i] = v }, width)
	}

	for x := 0; x < width; x++ {
		smear(
			func(i int) bool { return m[i*width+x] },
			func(i int, v bool) { m[i*width+x] = v },
			height,
		)
	}
}
