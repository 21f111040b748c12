// Package formats renders compiled programs into the file formats GX
// Works2 accepts: plain IL text, the tab-delimited CSV of its
// "Read from CSV File" feature, and a device-comment CSV.
package formats

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
	"github.com/openmelsec/laddergen/internal/ladder"
)

// Options controls the export headers.
type Options struct {
	ProgramName string `json:"program_name"`
	CPUType     string `json:"cpu_type"`
}

// DefaultOptions matches a Q-series universal model CPU project.
func DefaultOptions() Options {
	return Options{
		ProgramName: "MAIN",
		CPUType:     "QCPU (Q mode) Q03UDV",
	}
}

func (o Options) programName() string {
	if o.ProgramName == "" {
		return "MAIN"
	}
	return o.ProgramName
}

func (o Options) cpuType() string {
	if o.CPUType == "" {
		return "QCPU (Q mode) Q03UDV"
	}
	return o.CPUType
}

// ExportResult bundles every artifact of one export.
type ExportResult struct {
	ProgramText       string `json:"program_text"`
	ProgramCSV        []byte `json:"-"`
	DeviceCommentsCSV string `json:"device_comments_csv"`
	InstructionCount  int    `json:"instruction_count"`
	RungCount         int    `json:"rung_count"`
}

// Export renders a compiled program in every supported representation.
func Export(program ladder.Program, seq il.Sequence, opts Options) ExportResult {
	return ExportResult{
		ProgramText:       seq.Text(),
		ProgramCSV:        ProgramCSV(seq, opts),
		DeviceCommentsCSV: DeviceComments(program.DeviceMap),
		InstructionCount:  seq.Len(),
		RungCount:         len(program.Rungs),
	}
}

// DeviceComments renders the device map as a two-column CSV suitable
// for GX Works2's comment import.
func DeviceComments(devmap device.Map) string {
	if len(devmap.Allocations) == 0 {
		return ""
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Device", "Comment"})
	for _, alloc := range devmap.Allocations {
		comment := alloc.Comment
		if comment == "" {
			comment = alloc.Name
		}
		if alloc.Timer != nil {
			comment = fmt.Sprintf("%s (K%d = %.1fs)", comment, alloc.Timer.KValue, alloc.Timer.Seconds)
		}
		_ = w.Write([]string{alloc.Address.String(), comment})
	}
	w.Flush()
	return buf.String()
}
