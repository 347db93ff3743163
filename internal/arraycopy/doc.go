// Package arraycopy turns source-level array copies into graph nodes and
// lowers them.
//
// A copy enters through Build, which inserts null and bounds guards, folds
// statically failing or empty copies, and appends exactly one ArrayCopy node
// whose variant comes from Select. Lower then rewrites the node in a single
// Replace step:
//
//   - Specialized copies become a MemMove over the element region of their
//     element type.
//   - Generic and Checked copies become a ForeignCall to the matching stub
//     with the same operands and the same "any" kill, followed by the status
//     decode: status 0 continues, anything else throws an array store error
//     carrying status ^ -1 copied elements.
package arraycopy
