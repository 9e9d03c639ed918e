package world

import "fmt"

// Vec3 is a world position. Y is height; X and Z span the ground plane.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Zone is the zoning assigned to a single square.
type Zone uint8

const (
	ZoneUnzoned         Zone = 0
	ZoneDistant         Zone = 1
	ZoneResidentialLow  Zone = 2
	ZoneResidentialHigh Zone = 3
	ZoneCommercialLow   Zone = 4
	ZoneCommercialHigh  Zone = 5
	ZoneIndustrial      Zone = 6
	ZoneOffice          Zone = 7
	ZoneNone            Zone = 15
)

// Family groups zones (and categories) for subtotal and unlock purposes.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyResidential
	FamilyCommercial
	FamilyIndustrial
	FamilyOffice
	FamilyUnzoned
)

var familyNames = map[Family]string{
	FamilyNone:        "none",
	FamilyResidential: "residential",
	FamilyCommercial:  "commercial",
	FamilyIndustrial:  "industrial",
	FamilyOffice:      "office",
	FamilyUnzoned:     "unzoned",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// ParseFamily resolves a family from its lower-case name.
func ParseFamily(name string) (Family, error) {
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return FamilyNone, fmt.Errorf("unknown zone family %q", name)
}

// Family returns the zone family of z. Distant and None have no family.
func (z Zone) Family() Family {
	switch z {
	case ZoneUnzoned:
		return FamilyUnzoned
	case ZoneResidentialLow, ZoneResidentialHigh:
		return FamilyResidential
	case ZoneCommercialLow, ZoneCommercialHigh:
		return FamilyCommercial
	case ZoneIndustrial:
		return FamilyIndustrial
	case ZoneOffice:
		return FamilyOffice
	default:
		return FamilyNone
	}
}

// IsHigh reports whether z is a high density residential or commercial zone.
func (z Zone) IsHigh() bool {
	return z == ZoneResidentialHigh || z == ZoneCommercialHigh
}

// BlockFlags holds the block state bits. Bits 8..15 carry the row count.
type BlockFlags uint16

const (
	BlockCreated BlockFlags = 1 << 0
	BlockDeleted BlockFlags = 1 << 1

	blockRowShift = 8
	blockRowMask  = BlockFlags(0xFF00)
)

// WithRows returns f with its row count replaced by rows.
func (f BlockFlags) WithRows(rows int) BlockFlags {
	return (f &^ blockRowMask) | (BlockFlags(rows) << blockRowShift & blockRowMask)
}

// Block is one record of the zone block table. Each square is addressed by
// the bit index (z<<3)|x with x in 0..3 and z in 0..RowCount()-1.
type Block struct {
	Position  Vec3       `json:"position"`
	Angle     float32    `json:"angle"`
	Flags     BlockFlags `json:"flags"`
	Valid     uint64     `json:"valid"`
	Occupied1 uint64     `json:"occupied1"`
	Occupied2 uint64     `json:"occupied2"`
	Shared    uint64     `json:"shared"`
	Zone1     uint64     `json:"zone1"`
	Zone2     uint64     `json:"zone2"`
}

// Created reports whether the block is in use.
func (b Block) Created() bool {
	return b.Flags&BlockCreated != 0
}

// EncodedRows returns the raw row count from the flags, without clamping.
func (b Block) EncodedRows() int {
	return int((b.Flags & blockRowMask) >> blockRowShift)
}

// RowCount returns the number of rows encoded in the flags, clamped to
// MaxBlockRows.
func (b Block) RowCount() int {
	rows := b.EncodedRows()
	if rows > MaxBlockRows {
		return MaxBlockRows
	}
	return rows
}

// SquareIndex returns the bit index for the square at column x, row z.
func SquareIndex(x, z int) uint {
	return uint(z<<3 | x)
}

// SquareMask returns the bitmask selecting square (x, z).
func SquareMask(x, z int) uint64 {
	return uint64(1) << SquareIndex(x, z)
}

// Occupied reports whether any building stands on the square selected by mask.
func (b Block) Occupied(mask uint64) bool {
	return (b.Occupied1|b.Occupied2)&mask != 0
}

// Countable reports whether the square selected by mask is valid and not shared.
func (b Block) Countable(mask uint64) bool {
	return b.Valid&mask != 0 && b.Shared&mask == 0
}

// ZoneAt returns the 4-bit zone stored for square (x, z).
func (b Block) ZoneAt(x, z int) Zone {
	idx := SquareIndex(x, z)
	if idx < 32 {
		return Zone((b.Zone1 >> (idx << 2)) & 15)
	}
	return Zone((b.Zone2 >> ((idx - 32) << 2)) & 15)
}

// SetZone stores zone for square (x, z).
func (b *Block) SetZone(x, z int, zone Zone) {
	idx := SquareIndex(x, z)
	if idx < 32 {
		shift := idx << 2
		b.Zone1 = b.Zone1&^(uint64(15)<<shift) | uint64(zone&15)<<shift
		return
	}
	shift := (idx - 32) << 2
	b.Zone2 = b.Zone2&^(uint64(15)<<shift) | uint64(zone&15)<<shift
}
