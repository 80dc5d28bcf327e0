// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the gateway's Server-Sent-Events chat stream.
//
// The decoder turns an arbitrary byte stream into a lazy sequence of
// classified events. Output never depends on how the bytes were chunked by
// the network: records are reassembled on blank-line boundaries, and UTF-8
// sequences split across reads are held back until complete.
//
// # Key Types
//
//   - Decoder: pull-based decoder over an io.Reader
//   - Event: one classified record (text delta, completion, error, ignored)
//   - Kind: the event classification
//
// # Error Semantics
//
// A record whose JSON does not parse yields a non-terminal KindError event
// and decoding continues. An upstream "error" record yields a terminal
// KindError event; nothing is read or emitted after it.
//
// # Usage
//
//	dec := stream.NewDecoder(resp.Body)
//	for {
//	    ev, err := dec.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    if ev.Kind == stream.KindTextDelta {
//	        fmt.Print(ev.Text)
//	    }
//	}
package stream
