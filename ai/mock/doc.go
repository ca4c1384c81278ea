// Package mock provides test doubles for the ai interfaces. The defaults are
// deterministic (hash-derived vectors, word-derived concepts) so pipeline and
// coordinator tests run without any model endpoint.
package mock
