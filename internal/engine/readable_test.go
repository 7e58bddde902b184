package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/promptforge/internal/ir"
)

func seg(key, text, slot, connector string) Segment {
	return Segment{Key: key, Text: text, Meta: &ir.Meta{Slot: slot, Connector: connector}}
}

func TestBuildReadable_Empty(t *testing.T) {
	assert.Equal(t, "", BuildReadable(nil, nil))
	assert.Equal(t, "", BuildReadable(&ir.Bundle{}, []Segment{}))
}

func TestBuildReadable_NoMetaFallsBackToSpaceJoin(t *testing.T) {
	segments := []Segment{{Key: "a", Text: "cat"}, {Key: "b", Text: "in space"}}
	assert.Equal(t, "cat in space", BuildReadable(nil, segments))
}

func TestBuildReadable_DropsSegmentsWithoutMeta(t *testing.T) {
	segments := []Segment{
		{Key: "origin", Text: "retro console with heavy wear"},
		seg("subject", "retro console", "subject", ""),
		seg("condition", "heavy wear", "condition", "with"),
	}
	assert.Equal(t, "retro console with heavy wear", BuildReadable(nil, segments))
}

func TestBuildReadable_ConnectorCommaMerge(t *testing.T) {
	segments := []Segment{
		seg("subject", "retro console", "subject", ""),
		seg("wear", "heavy wear", "condition", "with"),
		seg("screws", "rusty screws", "condition", "with"),
	}
	assert.Equal(t, "retro console with heavy wear, rusty screws", BuildReadable(nil, segments))
}

func TestBuildReadable_SortsByDefaultSlotOrder(t *testing.T) {
	segments := []Segment{
		seg("view", "wide shot", "view", ""),
		seg("extra", "mystery", "unlisted", "plus"),
		seg("colour", "teal", "colour", "in"),
		seg("subject", "robot", "subject", ""),
	}
	assert.Equal(t, "robot in teal wide shot plus mystery", BuildReadable(nil, segments))
}

func TestBuildReadable_BundleSlotOrder(t *testing.T) {
	b := &ir.Bundle{Metadata: ir.Metadata{SlotOrder: []string{"view", "subject"}}}
	segments := []Segment{
		seg("subject", "robot", "subject", "of"),
		seg("view", "close-up", "view", ""),
	}
	assert.Equal(t, "close-up of robot", BuildReadable(b, segments))
}

func TestBuildReadable_UnlistedKeepDiscoveryOrder(t *testing.T) {
	b := &ir.Bundle{Metadata: ir.Metadata{SlotOrder: []string{}}}
	segments := []Segment{
		seg("c", "third", "z", ""),
		seg("a", "first", "a", ""),
		seg("b", "second", "m", ""),
	}
	assert.Equal(t, "third first second", BuildReadable(b, segments))
}

func TestBuildReadable_TemplateSlotWins(t *testing.T) {
	segments := []Segment{
		seg("subject", "robot", "subject", ""),
		seg("full", "  a complete sentence.  ", "template", ""),
		seg("view", "wide", "view", ""),
	}
	assert.Equal(t, "  a complete sentence.  ", BuildReadable(nil, segments))
}

func TestBuildReadable_NormalisesWhitespace(t *testing.T) {
	segments := []Segment{
		seg("subject", "  robot ", "subject", ""),
		seg("empty", "   ", "condition", "with"),
		seg("purpose", "for war", "purpose", "  built  "),
		seg("materials", "steel", "materials", "built"),
	}
	assert.Equal(t, "robot built for war, steel", BuildReadable(nil, segments))
}

func TestBuildReadable_ConnectorChangeResetsMerge(t *testing.T) {
	segments := []Segment{
		seg("a", "ship", "subject", ""),
		seg("b", "dents", "condition", "with"),
		seg("c", "a hull", "materials", "and"),
		seg("d", "scratches", "markings", "with"),
	}
	assert.Equal(t, "ship with dents and a hull with scratches", BuildReadable(nil, segments))
}
