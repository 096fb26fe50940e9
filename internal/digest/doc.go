// Package digest computes the content hashes assetmill uses for
// fingerprints, cache keys, and freshness checks.
//
// All digests are lowercase hex strings. The algorithm is chosen once per
// environment (md5 by default, matching the fingerprint format most
// deploy tooling expects) and every hash in that environment uses it, so a
// change of algorithm changes the environment digest and invalidates all
// cache entries at once.
package digest
