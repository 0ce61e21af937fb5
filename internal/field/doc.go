// Package field evaluates the chronodynamic time field T(tau, x) and the
// symmetric rank-2 tensor C built from its derivatives.
//
// Everything here is a pure function of the parameters and the point it is
// evaluated at. Nothing is cached between calls.
package field
