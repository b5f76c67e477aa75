// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import "github.com/paulmach/orb"

type Interface interface {
	CellForPoint(p orb.Point, res int) (string, error)
	ToParent(cell string, parentRes int) (string, error)
	CellCenter(cell string) (orb.Point, error)
}
