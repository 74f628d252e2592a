package sim_test

import (
	"fmt"
	"io"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/regsim/regalloc"
	"github.com/sarchlab/regsim/sim"
	"github.com/sarchlab/regsim/trace"
)

func TestSim(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sim Suite")
}

// fakeReader serves a fixed slice of records and then io.EOF, so tests
// don't need a real encoded byte stream.
type fakeReader struct {
	records []trace.Record
	index   int
}

func (f *fakeReader) ReadRecord() (trace.Record, error) {
	if f.index >= len(f.records) {
		return trace.Record{}, io.EOF
	}
	rec := f.records[f.index]
	f.index++
	return rec, nil
}

// truncatedReader serves a fixed slice of records and then an
// io.ErrUnexpectedEOF, mimicking a trace.Reader that hit a truncated
// record instead of a clean end of stream.
type truncatedReader struct {
	records []trace.Record
	index   int
}

func (f *truncatedReader) ReadRecord() (trace.Record, error) {
	if f.index >= len(f.records) {
		return trace.Record{}, fmt.Errorf("trace: truncated record at index %d: %w", f.index, io.ErrUnexpectedEOF)
	}
	rec := f.records[f.index]
	f.index++
	return rec, nil
}

func destOnly(ip uint64, dest uint8) trace.Record {
	return trace.Record{IP: ip, DestinationRegisters: []uint8{dest, 0}}
}

func destSrc(ip uint64, dest uint8, src uint8) trace.Record {
	rec := trace.Record{IP: ip, DestinationRegisters: []uint8{dest, 0}}
	rec.SourceRegisters[0] = src
	return rec
}

var _ = Describe("Driver", func() {
	var alloc *regalloc.Allocator

	BeforeEach(func() {
		var err error
		alloc, err = regalloc.NewAllocator(8)
		Expect(err).NotTo(HaveOccurred())
	})

	It("renames, completes, and retires a straight-line sequence in program order", func() {
		reader := &fakeReader{records: []trace.Record{
			destOnly(0x1000, 1),
			destOnly(0x1004, 2),
			destOnly(0x1008, 3),
		}}
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 8, CompletionLatency: 1}))

		stats, err := d.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InstructionsRetired).To(Equal(uint64(3)))
		Expect(stats.StallsOnFreeList).To(Equal(uint64(0)))

		phys, err := alloc.BackendMapping(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(phys).NotTo(Equal(regalloc.Unmapped))
	})

	It("stalls admission when the free list is exhausted and recovers once a register frees", func() {
		reader := &fakeReader{records: []trace.Record{
			destOnly(0x1000, 1),
			destOnly(0x1004, 1),
			destOnly(0x1008, 3),
			destOnly(0x100C, 4),
			destOnly(0x1010, 5),
			destOnly(0x1014, 6),
			destOnly(0x1018, 7),
			destOnly(0x101C, 8),
			destOnly(0x1020, 9),
		}}
		// Only 8 physical registers, a window wide enough to admit all 9
		// instructions, and a completion latency long enough that none of
		// the first 8 retire before the 9th wants a register: its
		// rename_dest stalls until one frees up. Retiring an arch reg's
		// first write frees nothing, so the first two records both write
		// arch 1: retiring the second frees the first's register.
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 16, CompletionLatency: 100}))

		stats, err := d.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InstructionsRetired).To(Equal(uint64(9)))
		Expect(stats.StallsOnFreeList).To(BeNumerically(">", 0))
	})

	It("resolves a read-after-write source to its producer's destination register", func() {
		reader := &fakeReader{records: []trace.Record{
			destOnly(0x1000, 5),
			destSrc(0x1004, 6, 5),
		}}
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 8, CompletionLatency: 1}))

		_, err := d.Run()
		Expect(err).NotTo(HaveOccurred())

		phys, err := alloc.BackendMapping(5)
		Expect(err).NotTo(HaveOccurred())
		Expect(phys).NotTo(Equal(regalloc.Unmapped))
	})

	It("squashes the in-flight window and leaves no trace of the squashed renames", func() {
		reader := &fakeReader{records: []trace.Record{
			destOnly(0x1000, 1),
			destOnly(0x1004, 2),
			destOnly(0x1008, 3),
		}}
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 8, CompletionLatency: 100}))

		more, err := d.Tick()
		Expect(err).NotTo(HaveOccurred())
		Expect(more).To(BeTrue())

		more, err = d.Tick()
		Expect(err).NotTo(HaveOccurred())
		Expect(more).To(BeTrue())

		freeBefore := alloc.CountFree()
		Expect(freeBefore).To(Equal(6))

		d.Squash(0)
		Expect(alloc.CountFree()).To(Equal(8))
		Expect(d.Stats().Squashes).To(Equal(uint64(2)))

		allocated, err := alloc.IsAllocated(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(allocated).To(BeFalse())
	})

	It("surfaces a truncated trace file as an error instead of ending cleanly", func() {
		reader := &truncatedReader{records: []trace.Record{
			destOnly(0x1000, 1),
		}}
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 8, CompletionLatency: 1}))

		_, err := d.Run()
		Expect(err).To(HaveOccurred())
		Expect(err).To(MatchError(io.ErrUnexpectedEOF))
	})

	It("reports IPC as instructions retired per cycle", func() {
		reader := &fakeReader{records: []trace.Record{
			destOnly(0x1000, 1),
			destOnly(0x1004, 2),
		}}
		d := sim.NewDriver(alloc, reader, sim.WithConfig(&sim.Config{WindowSize: 8, CompletionLatency: 1}))

		stats, err := d.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.IPC()).To(BeNumerically(">", 0))
	})
})
