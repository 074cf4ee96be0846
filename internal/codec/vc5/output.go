package vc5

import "github.com/rcarmo/go-vc5/internal/codec"

// writePattern interleaves channel planes: channel c holds position
// (c % pw, c / pw) of every pattern cell.
func writePattern(img codec.Image, planes []Plane[int16], h Header, offsetX, offsetY int) {
	pw, ph := h.PatternWidth, h.PatternHeight
	for c, p := range planes {
		px, py := offsetX+c%pw, offsetY+c/pw
		for y := 0; y < p.Height(); y++ {
			row := p.Row(y)
			for x, v := range row {
				img.Set(px+x*pw, py+y*ph, uint16(max(v, 0)))
			}
		}
	}
}

// writeRAW converts the gs/rg/bg/gd difference channels to an RGGB Bayer
// mosaic and expands each site through the log table.
func writeRAW(img codec.Image, planes []Plane[int16], h Header, lt *LogTable, offsetX, offsetY int) {
	mid := int32(1) << uint(h.BitsPerComponent-1)
	gs, rg, bg, gd := planes[0], planes[1], planes[2], planes[3]

	for y := 0; y < gs.Height(); y++ {
		gsRow, rgRow, bgRow, gdRow := gs.Row(y), rg.Row(y), bg.Row(y), gd.Row(y)
		top, bottom := offsetY+2*y, offsetY+2*y+1
		for x := range gsRow {
			g := int32(gsRow[x])
			r := g + 2*(int32(rgRow[x])-mid)
			b := g + 2*(int32(bgRow[x])-mid)
			g1 := g + (int32(gdRow[x]) - mid)
			g2 := g - (int32(gdRow[x]) - mid)

			left, right := offsetX+2*x, offsetX+2*x+1
			img.Set(left, top, lt.expandClamped(r))
			img.Set(right, top, lt.expandClamped(g1))
			img.Set(left, bottom, lt.expandClamped(g2))
			img.Set(right, bottom, lt.expandClamped(b))
		}
	}
}
