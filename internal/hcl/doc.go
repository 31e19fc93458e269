// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses the optional sitegrid.hcl file, overlays it on the
// built-in defaults and returns a validated, root-resolved config.Model.
//
// Every attribute is evaluated with a single variable in scope, root, which
// holds the absolute project root:
//
//	paths "dist" {
//	  base = "${root}/public"
//	}
package hcl
