package queue

import (
	"slices"

	"github.com/gogpu/scenestate/state"
)

// sortAppearances sorts the distinct appearances of a frame. The set is
// small, so a stable sort keeps equal appearances in submission order.
func sortAppearances(apps []*state.Appearance, cmp func(a, b *state.Appearance) int) {
	slices.SortStableFunc(apps, cmp)
}

// quickSort sorts x[off:off+n] by the parallel keys k with a three-way
// partitioning quicksort. Runs of equal keys, which are common when many
// atoms share an appearance, are gathered in one pass.
func quickSort(k []int, x []*RenderAtom, off, n int) {
	if n < 7 {
		for i := off; i < off+n; i++ {
			for j := i; j > off && k[j-1] > k[j]; j-- {
				swap(k, x, j, j-1)
			}
		}
		return
	}

	m := off + n>>1
	if n > 7 {
		l, h := off, off+n-1
		if n > 40 {
			s := n / 8
			l = med3(k, l, l+s, l+2*s)
			m = med3(k, m-s, m, m+s)
			h = med3(k, h-2*s, h-s, h)
		}
		m = med3(k, l, m, h)
	}
	v := k[m]

	a, b := off, off
	c, d := off+n-1, off+n-1
	for {
		for b <= c && k[b] <= v {
			if k[b] == v {
				swap(k, x, a, b)
				a++
			}
			b++
		}
		for c >= b && k[c] >= v {
			if k[c] == v {
				swap(k, x, c, d)
				d--
			}
			c--
		}
		if b > c {
			break
		}
		swap(k, x, b, c)
		b++
		c--
	}

	end := off + n
	s := min(a-off, b-a)
	vecswap(k, x, off, b-s, s)
	s = min(d-c, end-d-1)
	vecswap(k, x, b, end-s, s)

	if s := b - a; s > 1 {
		quickSort(k, x, off, s)
	}
	if s := d - c; s > 1 {
		quickSort(k, x, end-s, s)
	}
}

func swap(k []int, x []*RenderAtom, i, j int) {
	k[i], k[j] = k[j], k[i]
	x[i], x[j] = x[j], x[i]
}

func vecswap(k []int, x []*RenderAtom, i, j, n int) {
	for range n {
		swap(k, x, i, j)
		i++
		j++
	}
}

// med3 returns the index of the median of k[a], k[b] and k[c].
func med3(k []int, a, b, c int) int {
	switch {
	case k[a] < k[b]:
		if k[b] < k[c] {
			return b
		}
		if k[a] < k[c] {
			return c
		}
		return a
	default:
		if k[b] > k[c] {
			return b
		}
		if k[a] > k[c] {
			return c
		}
		return a
	}
}
