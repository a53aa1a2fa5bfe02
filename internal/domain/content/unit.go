package content

import (
	"fmt"
	"path"
)

// ArchiveExt is the extension of packaged unit archives.
const ArchiveExt = ".zip"

// Category is the kind of a content unit.
type Category string

const (
	// Car is a vehicle under content/cars.
	Car Category = "car"
	// Track is a circuit under content/tracks.
	Track Category = "track"
)

// Categories lists every category in processing order.
func Categories() []Category {
	return []Category{Car, Track}
}

// Dir is the directory name used for the category both in the game install
// and in the storage bucket.
func (c Category) Dir() string {
	switch c {
	case Car:
		return "cars"
	case Track:
		return "tracks"
	default:
		return ""
	}
}

// ArchivePrefix is the entry prefix of the category inside a server pack.
func (c Category) ArchivePrefix() string {
	return "content/" + c.Dir() + "/"
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == Car || c == Track
}

// Unit is one named car or track bundle.
type Unit struct {
	Name     string
	Category Category
}

// ObjectPath is the bucket path of the unit archive, e.g. cars/my_car.zip.
func (u Unit) ObjectPath() string {
	return path.Join(u.Category.Dir(), u.Name+ArchiveExt)
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s", u.Category.Dir(), u.Name)
}
