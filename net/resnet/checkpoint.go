package resnet

import (
	"bufio"
	"compress/lzw"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Checkpoint header constants.
const (
	Magic   = 20210622
	Version = 1

	headerLen = 64
	maxWidth  = 1 << 14
	maxBlocks = 1 << 10
	maxClass  = 1 << 20
	maxParams = 1 << 28
)

// Header slots. Stage widths start at slotWidths, block counts follow them.
const (
	slotMagic = iota
	slotVersion
	slotStem
	slotStages
	slotClasses
	slotWidths = 8
)

// Compressed reports whether path names an lzw compressed checkpoint.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".lzw")
}

func (m *Model) header() (h [headerLen]int32) {
	s := len(m.Config.Widths)
	h[slotMagic] = Magic
	h[slotVersion] = Version
	h[slotStem] = int32(m.Config.Stem)
	h[slotStages] = int32(s)
	h[slotClasses] = int32(m.Config.Classes)
	for i := 0; i < s; i++ {
		h[slotWidths+i] = int32(m.Config.Widths[i])
		h[slotWidths+s+i] = int32(m.Config.Blocks[i])
	}
	return h
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo writes the uncompressed checkpoint: the header, the backbone
// parameters, then the head weights row by row and the head bias.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)

	h := m.header()
	if err := binary.Write(bw, binary.LittleEndian, h[:]); err != nil {
		return cw.n, err
	}
	for _, p := range m.Parameters() {
		if err := binary.Write(bw, binary.LittleEndian, p); err != nil {
			return cw.n, err
		}
	}
	head := make([]float32, 0, m.Head.Out*m.Head.In+m.Head.Out)
	for i := 0; i < m.Head.Out; i++ {
		for _, v := range m.Head.W.RawRowView(i) {
			head = append(head, float32(v))
		}
	}
	for i := 0; i < m.Head.Out; i++ {
		head = append(head, float32(m.Head.B.AtVec(i)))
	}
	if err := binary.Write(bw, binary.LittleEndian, head); err != nil {
		return cw.n, err
	}
	err := bw.Flush()
	return cw.n, err
}

// Read decodes an uncompressed checkpoint. The reader must end right after
// the head bias.
func Read(r io.Reader) (*Model, error) {
	var h [headerLen]int32
	if err := binary.Read(r, binary.LittleEndian, h[:]); err != nil {
		return nil, errors.Wrap(err, "resnet: reading header")
	}
	if h[slotMagic] != Magic {
		return nil, errors.Errorf("resnet: bad magic %d", h[slotMagic])
	}
	if h[slotVersion] != Version {
		return nil, errors.Errorf("resnet: unsupported checkpoint version %d", h[slotVersion])
	}
	s := int(h[slotStages])
	if s < 1 || s > MaxStages {
		return nil, errors.Errorf("resnet: bad stage count %d", s)
	}
	cfg := Config{
		Stem:    int(h[slotStem]),
		Classes: int(h[slotClasses]),
		Widths:  make([]int, s),
		Blocks:  make([]int, s),
	}
	for i := 0; i < s; i++ {
		cfg.Widths[i] = int(h[slotWidths+i])
		cfg.Blocks[i] = int(h[slotWidths+s+i])
		if cfg.Widths[i] > maxWidth || cfg.Blocks[i] > maxBlocks {
			return nil, errors.Errorf("resnet: stage %d too large", i)
		}
	}
	if cfg.Stem > maxWidth || cfg.Classes > maxClass {
		return nil, errors.Errorf("resnet: stem %d or classes %d too large", cfg.Stem, cfg.Classes)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n := cfg.NumParameters(); n > maxParams {
		return nil, errors.Errorf("resnet: checkpoint declares %d parameters, limit is %d", n, maxParams)
	}
	m, err := build(cfg)
	if err != nil {
		return nil, err
	}

	for _, p := range m.Parameters() {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, errors.Wrap(err, "resnet: reading backbone")
		}
	}
	head := make([]float32, m.Head.Out*m.Head.In+m.Head.Out)
	if err := binary.Read(r, binary.LittleEndian, head); err != nil {
		return nil, errors.Wrap(err, "resnet: reading head")
	}
	for i := 0; i < m.Head.Out; i++ {
		row := m.Head.W.RawRowView(i)
		for j := range row {
			row[j] = float64(head[i*m.Head.In+j])
		}
		m.Head.B.SetVec(i, float64(head[m.Head.Out*m.Head.In+i]))
	}

	var extra [1]byte
	switch _, err := io.ReadFull(r, extra[:]); err {
	case io.EOF:
	case nil:
		return nil, errors.New("resnet: trailing data after head")
	default:
		return nil, errors.Wrap(err, "resnet: reading checkpoint end")
	}
	return m, nil
}

// Load reads a checkpoint file, decompressing it when the path ends in .lzw.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "resnet: load")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if Compressed(path) {
		lr := lzw.NewReader(r, lzw.LSB, 8)
		defer lr.Close()
		r = lr
	}
	m, err := Read(r)
	if err != nil {
		return nil, errors.Wrapf(err, "resnet: load %s", path)
	}
	return m, nil
}

// Save writes the checkpoint to path, replacing any existing file. The data
// goes to a temporary file in the same directory which is then renamed.
func (m *Model) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "resnet: save")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "resnet: save")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if Compressed(path) {
		lw := lzw.NewWriter(tmp, lzw.LSB, 8)
		if _, err = m.WriteTo(lw); err != nil {
			return errors.Wrap(err, "resnet: save")
		}
		if err = lw.Close(); err != nil {
			return errors.Wrap(err, "resnet: save")
		}
	} else if _, err = m.WriteTo(tmp); err != nil {
		return errors.Wrap(err, "resnet: save")
	}

	if err = tmp.Chmod(0o644); err != nil {
		return errors.Wrap(err, "resnet: save")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "resnet: save")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "resnet: save")
	}
	return nil
}
