// Package forecast models the naming and dating conventions of IceNet
// forecast products.
//
// # Forecast identifiers
//
// A forecast is identified by a base name plus a hemisphere suffix:
//
//	fc.2024-05-21_north
//	fc.2024-05-21_south
//
// The suffix is mandatory and must be exactly "_north" or "_south"; it selects
// which observational and model dataset variant every downstream tool uses.
// Identifiers with any other suffix are rejected at parse time.
//
// # Regions
//
// An optional region restricts plotting and metrics to a sub-area of the
// hemisphere grid. Two encodings exist:
//
//	70,155,145,240      pixel bounds: x_min,y_min,x_max,y_max (integers)
//	l-100,55,-70,75     geographic bounds: lon_min,lat_min,lon_max,lat_max
//	                    (floats, marked by a leading "l")
//
// The metrics tooling only understands pixel bounds, so selecting geographic
// bounds disables metric computation for the whole run.
//
// # Date manifests
//
// Each forecast carries a manifest file "<identifier>.csv" listing one
// YYYY-MM-DD date per line. Every date drives one iteration of artifact
// production.
//
// # Metrics date gate
//
// Accuracy and error metrics need observational ground truth extending past
// the forecast date. The gate compares the most recent date present in the
// hemisphere's sea-ice concentration record against the forecast date plus
// one day, and passes only on a strict exceedance. See [MetricsEligible].
//
// # Artifact naming
//
// Upstream plotting tools prefix their outputs with "<identifier>.<date>.".
// Within a per-date output directory that prefix is redundant and is stripped
// exactly once, so "fc.2024-05-21_north.2024-05-21.0.tiff" becomes "0.tiff".
// See [NormalizeNames].
package forecast
