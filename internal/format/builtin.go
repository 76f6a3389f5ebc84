// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package format

import (
	"fmt"
	"plugin"
)

// builtinDetectors lists every format shipped with the binary.
var builtinDetectors = []Detector{
	GIF,
	PNG,
	MPG,
	ICC,
	PSB,
	JPEG,
	ZIP,
	BMP,
}

// NewDefaultRegistry returns a Registry pre-populated with every built-in
// detector. The built-in signature set is known not to collide, so a
// registration failure here is a programming error, not a runtime one.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range builtinDetectors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Detectors returns the built-in detector set, e.g. for listing with
// `digler formats`.
func Detectors() []Detector {
	out := make([]Detector, len(builtinDetectors))
	copy(out, builtinDetectors)
	return out
}

// LoadPlugins loads one Detector from each of the given .so plugin paths.
// A plugin must export a GetDetector() (format.Detector, error) symbol,
// mirroring the repo's pre-existing plugins/simple_scanner.go convention.
func LoadPlugins(paths ...string) ([]Detector, error) {
	var out []Detector
	for _, p := range paths {
		d, err := loadPlugin(p)
		if err != nil {
			return nil, fmt.Errorf("load plugin %s: %w", p, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func loadPlugin(path string) (Detector, error) {
	pl, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := pl.Lookup("GetDetector")
	if err != nil {
		return nil, err
	}
	ctor, ok := sym.(func() (Detector, error))
	if !ok {
		return nil, fmt.Errorf("unexpected GetDetector signature")
	}
	return ctor()
}
