package lldp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityMap_Bitmask(t *testing.T) {
	caps := CapabilityMap{
		CapBridge:  true,
		CapRouter:  true,
		CapWLAN:    false,
		CapStation: false,
	}

	// Only enabled capabilities contribute bits.
	assert.Equal(t, uint16(0x14), caps.Bitmask())
	assert.Zero(t, CapabilityMap{}.Bitmask())
	assert.Zero(t, CapabilityMap(nil).Bitmask())
}

func TestCapabilityMap_BitmaskIgnoresUnknownNames(t *testing.T) {
	caps := CapabilityMap{"Flux": true, CapBridge: true}

	assert.Equal(t, uint16(0x04), caps.Bitmask())
}

func TestCapabilityMap_Accessors(t *testing.T) {
	caps := CapabilityMap{CapBridge: true, CapRouter: false}

	assert.True(t, caps.IsBridge())
	assert.False(t, caps.IsRouter())
	assert.False(t, caps.IsWLAN())
}

func TestCapabilityMap_NamesAndSummary(t *testing.T) {
	caps := CapabilityMap{CapRouter: true, CapBridge: true, CapWLAN: false}

	assert.Equal(t, []string{CapBridge, CapRouter, CapWLAN}, caps.Names())
	assert.Equal(t, "Bridge,Router", caps.Summary())
	assert.Empty(t, CapabilityMap(nil).Summary())
}

func TestCapabilityMap_Equal(t *testing.T) {
	assert.True(t, CapabilityMap(nil).Equal(CapabilityMap{}))
	assert.True(t, CapabilityMap{CapBridge: true}.Equal(CapabilityMap{CapBridge: true}))
	assert.False(t, CapabilityMap{CapBridge: true}.Equal(CapabilityMap{CapBridge: false}))
	assert.False(t, CapabilityMap{CapBridge: true}.Equal(CapabilityMap{CapRouter: true}))
}
