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

// Package analytics persists point-in-time snapshots of fleet state and
// answers questions about how that state moves over time.
//
// A Snapshot is a pure aggregation of one classification batch: counts by
// outcome, namespace and owner, expiration and age buckets, label
// compliance, and categorized deletion and protection reasons. Building one
// touches no I/O. The Aggregator then writes snapshots to the store with a
// retention TTL and registers them in a time-sorted index so windowed
// queries are a single range read.
//
// Trend direction over a window compares the mean of the older half of the
// series against the mean of the recent half, with a ten percent relative
// threshold before a change counts as a trend. One data point is always
// "stable". Pruning snapshots past retention is an explicit maintenance
// operation and is idempotent.
package analytics
