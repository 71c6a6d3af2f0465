//go:build !debug

package domain

const debugAssertions = false
