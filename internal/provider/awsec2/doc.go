// Package awsec2 implements the fleet provider interfaces against EC2.
//
// One provider spans all regions: clients are derived per region from a
// single credential config, since the EC2 control plane is region-scoped.
// Inventory calls carry their own timeouts; control-call timeouts belong to
// the executor, which owns retry-by-next-tick semantics.
package awsec2
