// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package config assembles the ffsync runtime configuration.
//
// Values are merged from three sources, later sources filling in fields the
// earlier ones left empty: environment variables, command-line flags, and an
// optional JSON file named by either of the first two. The merged result is
// validated and defaulted by [StructuredConfig.validate]; [GetConfig] is the
// single entry point used by the composition root.
package config
