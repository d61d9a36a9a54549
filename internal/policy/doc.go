/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package policy implements the lifecycle rule engine that decides which
// clusters must be deleted and which are protected.
//
// The engine is a pure function over three inputs: a cluster observation
// (identity, labels, creation time), an immutable Policy, and a single "now"
// timestamp captured once per batch. It produces a Classification with a
// machine-readable reason code and a human-readable message.
//
// Rules are checked in a fixed order and the first match wins:
//
//  1. Management-cluster identity          -> protect
//  2. Protected name / excluded namespace  -> protect
//  3. Grace period after creation          -> protect
//  4. Missing "expires" label              -> delete
//  5. Missing or invalid extra label       -> delete
//  6. Malformed "expires" value            -> delete
//  7. Lifetime elapsed                     -> delete, otherwise protect
//
// The order is observable through reason strings and must not change.
//
// Cluster lifetimes use a compact grammar: one or more digits followed by a
// single unit character, e.g. "48h", "7d", "2w", "1y". A week is 7 days and
// a year is 365 days. Malformed labels are never errors at this layer; they
// classify the cluster for deletion with an explanatory reason.
package policy
