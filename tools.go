// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

//go:build tools

// Package main pins the test tooling used by the integration suites.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "github.com/onsi/gomega"
	_ "github.com/stretchr/testify/mock"
)
