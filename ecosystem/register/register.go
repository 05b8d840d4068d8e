// Package register wires every concrete ecosystem.Scanner implementation
// into an ecosystem.Registry. Split out from package ecosystem itself
// because every concrete Scanner package imports "ecosystem" for the
// Scanner interface and Type constants, so registering them from inside
// "ecosystem" would be an import cycle.
package register

import (
	"github.com/bazbom/bazbom/ecosystem"
	"github.com/bazbom/bazbom/ecosystem/apk"
	"github.com/bazbom/bazbom/ecosystem/bazel"
	"github.com/bazbom/bazbom/ecosystem/cargo"
	"github.com/bazbom/bazbom/ecosystem/composer"
	"github.com/bazbom/bazbom/ecosystem/dpkg"
	"github.com/bazbom/bazbom/ecosystem/golang"
	"github.com/bazbom/bazbom/ecosystem/gradle"
	"github.com/bazbom/bazbom/ecosystem/maven"
	"github.com/bazbom/bazbom/ecosystem/npm"
	"github.com/bazbom/bazbom/ecosystem/python"
	"github.com/bazbom/bazbom/ecosystem/rpm"
	"github.com/bazbom/bazbom/ecosystem/rubygems"
	"github.com/bazbom/bazbom/ecosystem/sbt"
)

// All returns one instance of every built-in Scanner.
func All() []ecosystem.Scanner {
	return []ecosystem.Scanner{
		npm.Scanner{},
		python.Scanner{},
		golang.Scanner{},
		cargo.Scanner{},
		rubygems.Scanner{},
		composer.Scanner{},
		maven.Scanner{},
		gradle.Scanner{},
		bazel.Scanner{},
		sbt.Scanner{},
		apk.Scanner{},
		dpkg.Scanner{},
		rpm.Scanner{},
	}
}

// NewRegistry returns an ecosystem.Registry pre-populated with every
// built-in Scanner.
func NewRegistry() *ecosystem.Registry {
	r := ecosystem.NewRegistry()
	for _, s := range All() {
		r.Register(s)
	}
	return r
}
