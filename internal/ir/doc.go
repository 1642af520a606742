// Package ir provides the strongly-typed domain entities shared by the
// disturbance and spin-up packages.
//
// This package contains type definitions and fingerprinting only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Configuration records are converted into these types once, at load time
//   - TransferMatrix rows keep their configured order
//   - Same-pool transfers are kept here and filtered only when applied
//   - CacheKey fingerprints are stable across processes and platforms
package ir
