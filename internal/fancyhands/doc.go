// Package fancyhands posts small human tasks, such as appointment booking, to
// the FancyHands API.
package fancyhands
