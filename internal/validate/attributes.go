package validate

import (
	"path"
	"strings"
)

// Kind tells how the values of an attribute are compared inside a cluster
type Kind int

const (
	// KindScalar attributes conflict when more than one distinct value appears
	KindScalar Kind = iota
	// KindList attributes conflict when the records' value sets share nothing
	KindList
)

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "scalar"
}

// AttributeClassifier resolves each attribute to a Kind once, up front,
// instead of guessing from the values it happens to hold
type AttributeClassifier struct {
	listNames    map[string]bool
	listPatterns []string
}

// NewAttributeClassifier creates a classifier from the configured
// list-valued attributes. Entries containing glob metacharacters such as
// "*_roles" match by pattern.
func NewAttributeClassifier(listValued []string) *AttributeClassifier {
	classifier := &AttributeClassifier{
		listNames: make(map[string]bool),
	}

	for _, attr := range listValued {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		if strings.ContainsAny(attr, "*?[") {
			// skip malformed patterns
			if _, err := path.Match(attr, ""); err != nil {
				continue
			}
			classifier.listPatterns = append(classifier.listPatterns, attr)
			continue
		}
		classifier.listNames[attr] = true
	}

	return classifier
}

// Classify returns the Kind of an attribute
func (c *AttributeClassifier) Classify(attr string) Kind {
	if c.listNames[attr] {
		return KindList
	}
	for _, pattern := range c.listPatterns {
		if ok, _ := path.Match(pattern, attr); ok {
			return KindList
		}
	}
	return KindScalar
}
