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

// Package inventory reads the fleet of managed workload clusters from the
// management cluster's API and executes deletions against it.
//
// The source of truth is the KommanderCluster custom resource. Each managed
// cluster carries a reference to the Cluster API object that actually owns
// the infrastructure; that reference is the deletion target. KommanderCluster
// objects without a CAPI reference describe attached clusters that this tool
// never manages, and they are filtered out at listing time.
//
// Inventory failures are fatal for a run: with no cluster list there is
// nothing to classify. They surface as ErrUnavailable so callers can tell
// "fix your kubeconfig" apart from "fix your store connectivity".
package inventory
