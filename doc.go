// Package flowbuf moves typed sample streams between the stages of a
// dataflow graph.
//
// A stage writes into a buffer through its Writer and every downstream
// stage reads through its own Reader. Buffers are broadcast logs: each
// reader sees every item published while it is attached and consumes at
// its own pace, and the writer can never get more than Size() items ahead
// of the slowest reader.
//
// Circular is the lock-free implementation: one atomic write cursor, one
// atomic cursor per reader, and a power-of-two slot array whose views are
// always contiguous, so fill routines and readers work directly on the
// buffer memory.
//
//	buf, _ := flowbuf.NewCircular[float32](4096)
//	w, _ := buf.NewWriter()
//	r, _ := buf.NewReader()
//
//	_ = w.Publish(func(span []float32) {
//		for i := range span {
//			span[i] = 1
//		}
//	}, 256)
//
//	in := r.Get(256)
//	process(in)
//	r.Consume(len(in))
//
// Graph code should depend on the Buffer, Reader and Writer interfaces
// only; package skeleton provides a non-functional implementation that
// documents the minimal shape of the contract.
package flowbuf
