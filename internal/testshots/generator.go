// Package testshots drives the bridge end to end without launch monitor
// hardware: it connects to the listener as a monitor would and replays
// synthetic shots through the same session, enrichment, and display path.
package testshots

import (
	"crypto/rand"
	"math/big"
)

// Constants for random number generation.
const randomFloatDivisor = 1000000

// Plausible ranges for a driver swing, SI units.
const (
	ballSpeedMin   = 50.0 // m/s
	ballSpeedRange = 35.0
	vlaMin         = 8.0 // degrees
	vlaRange       = 10.0
	hlaSpread      = 6.0 // degrees either side
	spinMin        = 1800.0 // rpm
	spinRange      = 2200.0
	axisSpread     = 25.0 // degrees either side
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// Shot is one synthetic shot in SI units.
type Shot struct {
	BallSpeedMPS float64
	VLADeg       float64
	HLADeg       float64
	TotalSpinRPM float64
	SpinAxisDeg  float64
}

// RandomShot generates a plausible driver shot.
func RandomShot() Shot {
	return Shot{
		BallSpeedMPS: ballSpeedMin + getRandomFloat()*ballSpeedRange,
		VLADeg:       vlaMin + getRandomFloat()*vlaRange,
		HLADeg:       (getRandomFloat()*2 - 1) * hlaSpread,
		TotalSpinRPM: spinMin + getRandomFloat()*spinRange,
		SpinAxisDeg:  (getRandomFloat()*2 - 1) * axisSpread,
	}
}

// ReferenceShot is the documented calculator contract example: a 70 m/s fade.
// Useful for eyeballing the full chain against known output.
func ReferenceShot() Shot {
	return Shot{
		BallSpeedMPS: 70.0,
		VLADeg:       12.5,
		HLADeg:       -2.0,
		TotalSpinRPM: 2800.0,
		SpinAxisDeg:  15.0,
	}
}
