// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

//go:build tools

// Package main pins test-only dependencies to go.mod so that integration
// suites behind build tags keep resolving.
package main

import (
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
