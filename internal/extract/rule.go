// Package extract turns supplier XML invoices into extracted lines using
// declarative templates, and detects known invoice layouts.
package extract

import (
	"regexp"
	"strings"

	"github.com/opensource-finance/fuelrecon/internal/document"
	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// Rule is a compiled field extraction rule. The concrete types are
// staticRule, xpathRule, regexRule and xpathRegexRule.
type Rule interface {
	// Extract returns the field value for one line node, or nil.
	// root is the document root; REGEX rules read from it.
	Extract(node, root *document.Node) *string

	sealed()
}

type staticRule struct {
	value     string
	transform domain.Transform
}

type xpathRule struct {
	path      string
	transform domain.Transform
}

type regexRule struct {
	path      string
	patterns  []pattern
	transform domain.Transform
}

type xpathRegexRule struct {
	path      string
	patterns  []pattern
	transform domain.Transform
}

// pattern is one compiled cascade entry. re is nil when the source did not
// compile; such a pattern never matches.
type pattern struct {
	re        *regexp.Regexp
	group     int
	transform domain.Transform
}

func (staticRule) sealed()     {}
func (xpathRule) sealed()      {}
func (regexRule) sealed()      {}
func (xpathRegexRule) sealed() {}

// CompileRule validates a persisted rule and compiles it.
func CompileRule(r domain.FieldExtractionRule) (Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r.Method {
	case domain.MethodStatic:
		return staticRule{value: r.StaticValue, transform: r.Transform}, nil
	case domain.MethodXPath:
		return xpathRule{path: r.XPath, transform: r.Transform}, nil
	case domain.MethodRegex:
		return regexRule{path: r.XPath, patterns: compilePatterns(r), transform: r.Transform}, nil
	default: // MethodXPathRegex; Validate rejected anything else
		return xpathRegexRule{path: r.XPath, patterns: compilePatterns(r), transform: r.Transform}, nil
	}
}

// ExtractField compiles rule and applies it to node.
func ExtractField(node *document.Node, rule domain.FieldExtractionRule, root *document.Node) (*string, error) {
	compiled, err := CompileRule(rule)
	if err != nil {
		return nil, err
	}
	return compiled.Extract(node, root), nil
}

func (r staticRule) Extract(_, _ *document.Node) *string {
	return finish(r.value, r.transform)
}

func (r xpathRule) Extract(node, _ *document.Node) *string {
	text, ok := node.ValueAt(r.path)
	if !ok {
		return nil
	}
	return finish(text, r.transform)
}

func (r regexRule) Extract(node, root *document.Node) *string {
	var source string
	if r.path == "" {
		source = node.InnerText()
	} else {
		if root == nil {
			root = node
		}
		text, ok := root.ValueAt(r.path)
		if !ok {
			return nil
		}
		source = text
	}
	text, ok := applyPatterns(r.patterns, source)
	if !ok {
		return nil
	}
	return finish(text, r.transform)
}

func (r xpathRegexRule) Extract(node, _ *document.Node) *string {
	source, ok := node.ValueAt(r.path)
	if !ok {
		return nil
	}
	text, ok := applyPatterns(r.patterns, source)
	if !ok {
		return nil
	}
	return finish(text, r.transform)
}

func compilePatterns(r domain.FieldExtractionRule) []pattern {
	if len(r.Patterns) == 0 {
		return []pattern{newPattern(r.Regex, r.RegexGroup, domain.TransformNone)}
	}
	out := make([]pattern, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		out = append(out, newPattern(p.Pattern, p.Group, p.Transform))
	}
	return out
}

func newPattern(src string, group *int, t domain.Transform) pattern {
	p := pattern{group: 1, transform: t}
	if group != nil {
		p.group = *group
	}
	if re, err := regexp.Compile(src); err == nil {
		p.re = re
	}
	return p
}

// applyPatterns returns the capture of the first matching pattern.
func applyPatterns(patterns []pattern, source string) (string, bool) {
	for _, p := range patterns {
		if p.re == nil {
			continue
		}
		loc := p.re.FindStringSubmatchIndex(source)
		if loc == nil {
			continue
		}
		// whole match unless the group exists and took part in the match
		text := source[loc[0]:loc[1]]
		if p.group >= 0 && p.group <= p.re.NumSubexp() && loc[2*p.group] >= 0 {
			text = source[loc[2*p.group]:loc[2*p.group+1]]
		}
		return applyTransform(p.transform, text), true
	}
	return "", false
}

func applyTransform(t domain.Transform, s string) string {
	switch t {
	case domain.TransformUppercase:
		return strings.ToUpper(s)
	case domain.TransformLowercase:
		return strings.ToLower(s)
	case domain.TransformTrim:
		return strings.TrimSpace(s)
	default:
		return s
	}
}

func finish(s string, t domain.Transform) *string {
	s = applyTransform(t, s)
	if s == "" {
		return nil
	}
	return &s
}
