package page

import "testing"

func BenchmarkAllocator_AllocFreePage(b *testing.B) {
	a := newTestAllocator(b, 1024)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := a.AllocPage()
		if err != nil {
			b.Fatal(err)
		}
		if err := a.FreePage(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllocator_AllocPages8(b *testing.B) {
	a := newTestAllocator(b, 1024)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := a.AllocPages(8)
		if err != nil {
			b.Fatal(err)
		}
		if err := a.Release(p); err != nil {
			b.Fatal(err)
		}
	}
}

// Fragmented pool: every other page is in use, so each release merges.
func BenchmarkAllocator_Coalesce(b *testing.B) {
	a := newTestAllocator(b, 1024)
	pages := make([]*Page, 1024)
	for i := range pages {
		pages[i], _ = a.AllocPage()
	}
	for i := 1; i < len(pages); i += 2 {
		_ = a.FreePage(pages[i])
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pages[2*(i%511)+2]
		if err := a.FreePage(p); err != nil {
			b.Fatal(err)
		}
		q, err := a.AllocPage()
		if err != nil {
			b.Fatal(err)
		}
		pages[2*(i%511)+2] = q
	}
}
