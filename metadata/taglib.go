// Package metadata holds the tag-name tables shared by codecs that read or
// write image metadata.
package metadata

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Model groups tags by the metadata block they belong to.
type Model int

const (
	ModelComments Model = iota // free-form comments (PNM '#', GIF, JPEG COM)
	ModelMain                  // TIFF / EXIF IFD0
	ModelExif                  // EXIF sub-IFD
	ModelGPS                   // EXIF GPS sub-IFD
	ModelCustom                // codec specific key/value pairs
)

func (m Model) String() string {
	switch m {
	case ModelComments:
		return "comments"
	case ModelMain:
		return "main"
	case ModelExif:
		return "exif"
	case ModelGPS:
		return "gps"
	case ModelCustom:
		return "custom"
	}
	return "unknown"
}

// TagInfo describes one well-known tag.
type TagInfo struct {
	ID          uint16
	Name        string
	Description string
}

// TagLib resolves tag ids to names and back.  It is read-only once built.
type TagLib struct {
	byID   map[Model]map[uint16]TagInfo
	byName map[Model]map[string]uint16
}

var (
	once     sync.Once
	instance *TagLib
)

// Init builds the process-wide TagLib.  It is called by the library's first
// initialisation so that concurrent first lookups never race on construction.
func Init() *TagLib {
	once.Do(func() { instance = build() })
	return instance
}

// Instance returns the process-wide TagLib, building it on first use.
func Instance() *TagLib { return Init() }

func build() *TagLib {
	l := &TagLib{
		byID:   make(map[Model]map[uint16]TagInfo),
		byName: make(map[Model]map[string]uint16),
	}
	l.add(ModelMain, mainTags)
	l.add(ModelExif, exifTags)
	l.add(ModelGPS, gpsTags)
	return l
}

func (l *TagLib) add(m Model, tags []TagInfo) {
	ids := make(map[uint16]TagInfo, len(tags))
	names := make(map[string]uint16, len(tags))
	for _, t := range tags {
		ids[t.ID] = t
		names[t.Name] = t.ID
	}
	l.byID[m] = ids
	l.byName[m] = names
}

// Name returns the field name of a tag, or "" when unknown.
func (l *TagLib) Name(m Model, id uint16) string {
	return l.byID[m][id].Name
}

// Description returns the human readable description of a tag.
func (l *TagLib) Description(m Model, id uint16) string {
	return l.byID[m][id].Description
}

// ID returns the numeric id of a named tag.
func (l *TagLib) ID(m Model, name string) (uint16, bool) {
	id, ok := l.byName[m][name]
	return id, ok
}

// Tags returns the known tags of a model sorted by id.
func (l *TagLib) Tags(m Model) []TagInfo {
	out := make([]TagInfo, 0, len(l.byID[m]))
	for _, t := range l.byID[m] {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b TagInfo) int { return int(a.ID) - int(b.ID) })
	return out
}

var mainTags = []TagInfo{
	{0x0100, "ImageWidth", "Image width"},
	{0x0101, "ImageLength", "Image height"},
	{0x0102, "BitsPerSample", "Number of bits per component"},
	{0x0103, "Compression", "Compression scheme"},
	{0x0106, "PhotometricInterpretation", "Pixel composition"},
	{0x010E, "ImageDescription", "Image title"},
	{0x010F, "Make", "Image input equipment manufacturer"},
	{0x0110, "Model", "Image input equipment model"},
	{0x0112, "Orientation", "Orientation of image"},
	{0x0115, "SamplesPerPixel", "Number of components"},
	{0x011A, "XResolution", "Image resolution in width direction"},
	{0x011B, "YResolution", "Image resolution in height direction"},
	{0x0128, "ResolutionUnit", "Unit of X and Y resolution"},
	{0x0131, "Software", "Software used"},
	{0x0132, "DateTime", "File change date and time"},
	{0x013B, "Artist", "Person who created the image"},
	{0x8298, "Copyright", "Copyright holder"},
	{0x8769, "ExifIfdPointer", "Exif IFD pointer"},
	{0x8825, "GPSInfoIfdPointer", "GPS information IFD pointer"},
}

var exifTags = []TagInfo{
	{0x829A, "ExposureTime", "Exposure time"},
	{0x829D, "FNumber", "F number"},
	{0x8827, "ISOSpeedRatings", "ISO speed ratings"},
	{0x9000, "ExifVersion", "Exif version"},
	{0x9003, "DateTimeOriginal", "Date and time of original data generation"},
	{0x9004, "DateTimeDigitized", "Date and time of digital data generation"},
	{0x920A, "FocalLength", "Lens focal length"},
	{0xA001, "ColorSpace", "Color space information"},
	{0xA002, "PixelXDimension", "Valid image width"},
	{0xA003, "PixelYDimension", "Valid image height"},
}

var gpsTags = []TagInfo{
	{0x0000, "GPSVersionID", "GPS tag version"},
	{0x0001, "GPSLatitudeRef", "North or South Latitude"},
	{0x0002, "GPSLatitude", "Latitude"},
	{0x0003, "GPSLongitudeRef", "East or West Longitude"},
	{0x0004, "GPSLongitude", "Longitude"},
	{0x0006, "GPSAltitude", "Altitude"},
}
