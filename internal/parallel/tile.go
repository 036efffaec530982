// Package parallel distributes per-tile point computation across worker
// goroutines.
//
// A render pass splits its pixel region into square tiles that are computed
// independently. Workers pull tiles from per-worker queues and steal from
// siblings when their own queue runs dry, which keeps cores busy when some
// tiles iterate far deeper than others.
package parallel

// DefaultTileSize is the edge length, in pixels, of a work tile. Interior
// tiles of a deep view can cost orders of magnitude more than escaping
// tiles, so tiles stay small enough for stealing to rebalance the load.
const DefaultTileSize = 64

// Tile is a rectangular pixel region scheduled as one unit of work.
// Coordinates are in grid space; edge tiles may be smaller than the
// requested tile size.
type Tile struct {
	// X, Y is the top-left corner of the tile in grid pixels.
	X int
	Y int

	// Width and Height are the tile's actual dimensions in pixels.
	Width  int
	Height int
}

// Pixels returns the number of pixels the tile covers.
func (t Tile) Pixels() int {
	return t.Width * t.Height
}

// Contains reports whether grid pixel (px, py) lies within the tile.
func (t Tile) Contains(px, py int) bool {
	return px >= t.X && px < t.X+t.Width &&
		py >= t.Y && py < t.Y+t.Height
}

// SplitRect divides the rectangle at (x, y) with the given dimensions into
// tiles of at most tileSize on a side. Tiles are emitted in row-major order.
// A non-positive tileSize falls back to DefaultTileSize.
func SplitRect(x, y, width, height, tileSize int) []Tile {
	if width <= 0 || height <= 0 {
		return nil
	}
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}

	cols := (width + tileSize - 1) / tileSize
	rows := (height + tileSize - 1) / tileSize

	tiles := make([]Tile, 0, cols*rows)
	for ty := range rows {
		for tx := range cols {
			t := Tile{
				X:      x + tx*tileSize,
				Y:      y + ty*tileSize,
				Width:  tileSize,
				Height: tileSize,
			}
			if over := t.X + t.Width - (x + width); over > 0 {
				t.Width -= over
			}
			if over := t.Y + t.Height - (y + height); over > 0 {
				t.Height -= over
			}
			tiles = append(tiles, t)
		}
	}
	return tiles
}
