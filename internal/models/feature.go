// Package models defines the shared domain types and event payloads.
package models

import (
	"fmt"
	"strings"
)

// Feature is one of the mutually exclusive operating modes.
type Feature int

const (
	FeatureNone Feature = iota
	FeatureDescribeScene
	FeaturePerson
	FeatureAsk
	FeatureNavigation
	FeatureRememberPerson
)

// ContinuousLoop names the background description loop in session ids and
// events. It is not a Feature: it runs while the active feature is None.
const ContinuousLoop = "continuous"

var featureNames = map[Feature]string{
	FeatureNone:           "none",
	FeatureDescribeScene:  "describe-scene",
	FeaturePerson:         "person",
	FeatureAsk:            "ask",
	FeatureNavigation:     "navigation",
	FeatureRememberPerson: "remember-person",
}

// String returns the wire name of the feature.
func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// ParseFeature parses a wire name, case-insensitively.
func ParseFeature(s string) (Feature, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range featureNames {
		if name == s {
			return f, nil
		}
	}
	return FeatureNone, fmt.Errorf("unknown feature %q", s)
}
