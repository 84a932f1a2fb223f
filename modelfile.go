package tabular

// modelfile.go implements spec.md §4.11/§6: the magic/revision-prefixed
// structural binary encoding of a trained model. Grounded on the teacher's
// nn.go Save/LoadNN (length-prefixed JSON-plus-separate-structure-file
// pattern) but reworked into the spec's field-id structural format so
// readers can skip unknown ids, per §6's forward-compatibility rule.

import (
	"bytes"
	"encoding/binary"
	"math"
)

// snapF32 rounds x to the nearest value exactly representable as a
// float32. The wire format stores every weight/threshold/value as f32
// (writeF32/writeF32Slice below); rounding model outputs to that
// precision as soon as they're computed, rather than only at encode
// time, is what makes deserialize(serialize(m)) bitwise-identical to m
// instead of merely close to it.
func snapF32(x float64) float64 { return float64(float32(x)) }

// magic is the fixed 8-byte file prefix, per spec.md §6.
var magic = [8]byte{'t', 'a', 'b', 'u', 'l', 'a', 'r', 0}

// CurrentRevision and MinSupportedRevision gate readers, per spec.md §6.
const (
	CurrentRevision      uint32 = 1
	MinSupportedRevision uint32 = 1
)

// field ids for the top-level Model struct, per spec.md §4.11: "every
// field carries a numeric id so fields can be added without breaking
// older readers".
const (
	fieldModelID       = 1
	fieldModelSemver   = 2
	fieldModelDate     = 3
	fieldModelInner    = 4
)

// Model is the on-disk root struct, per spec.md §4.11.
type Model struct {
	ID     string
	Semver string
	Date   string
	Inner  *ModelInner
}

// ModelInner discriminates which trained artifact the file holds.
type ModelInner struct {
	Task       Task
	Learner    LearnerKind
	Ensemble   *Ensemble
	Linear     *LinearModel
	NClasses   int
}

// modelWriter accumulates a structural encoding: each field write is
// (u32 field id, then the field's own length-prefixed or fixed-width
// encoding), per spec.md §6.
type modelWriter struct {
	buf bytes.Buffer
}

func (w *modelWriter) writeFieldID(id uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], id)
	w.buf.Write(tmp[:])
}

func (w *modelWriter) writeString(id uint32, s string) {
	w.writeFieldID(id)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.buf.Write(lenBuf[:])
	w.buf.WriteString(s)
}

func (w *modelWriter) writeU32(id uint32, v uint32) {
	w.writeFieldID(id)

	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *modelWriter) writeF32(id uint32, v float32) {
	w.writeFieldID(id)

	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
	w.buf.Write(tmp[:])
}

func (w *modelWriter) writeF32Slice(id uint32, v []float32) {
	w.writeFieldID(id)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
	w.buf.Write(lenBuf[:])

	for _, f := range v {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
		w.buf.Write(tmp[:])
	}
}

func (w *modelWriter) writeBytes(id uint32, raw []byte) {
	w.writeFieldID(id)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	w.buf.Write(lenBuf[:])
	w.buf.Write(raw)
}

// SerializeModel encodes m to the structural binary format, prefixed by
// magic and the current revision, per spec.md §6.
func SerializeModel(m *Model) ([]byte, error) {
	var out bytes.Buffer

	out.Write(magic[:])

	var revBuf [4]byte
	binary.LittleEndian.PutUint32(revBuf[:], CurrentRevision)
	out.Write(revBuf[:])

	w := &modelWriter{}
	w.writeString(fieldModelID, m.ID)
	w.writeString(fieldModelSemver, m.Semver)
	w.writeString(fieldModelDate, m.Date)

	innerBytes, err := serializeModelInner(m.Inner)
	if err != nil {
		return nil, err
	}

	w.writeBytes(fieldModelInner, innerBytes)

	out.Write(w.buf.Bytes())

	return out.Bytes(), nil
}

const (
	fieldInnerTask     = 1
	fieldInnerLearner  = 2
	fieldInnerNClasses = 3
	fieldInnerEnsemble = 4
	fieldInnerLinear   = 5
)

func serializeModelInner(inner *ModelInner) ([]byte, error) {
	w := &modelWriter{}

	w.writeU32(fieldInnerTask, uint32(inner.Task))
	w.writeU32(fieldInnerLearner, uint32(inner.Learner))
	w.writeU32(fieldInnerNClasses, uint32(inner.NClasses))

	if inner.Ensemble != nil {
		w.writeBytes(fieldInnerEnsemble, serializeEnsemble(inner.Ensemble))
	}

	if inner.Linear != nil {
		w.writeBytes(fieldInnerLinear, serializeLinearModel(inner.Linear))
	}

	return w.buf.Bytes(), nil
}

const (
	fieldEnsembleKind       = 1
	fieldEnsembleBias       = 2
	fieldEnsembleTrees      = 3
	fieldEnsembleBiases     = 4
	fieldEnsembleClassTrees = 5
)

func serializeEnsemble(e *Ensemble) []byte {
	w := &modelWriter{}

	w.writeU32(fieldEnsembleKind, uint32(e.Kind))
	w.writeF32(fieldEnsembleBias, float32(e.Bias))

	treesBuf := &modelWriter{}
	encodeTreeList(treesBuf, e.Trees)
	w.writeBytes(fieldEnsembleTrees, treesBuf.buf.Bytes())

	biasesF32 := make([]float32, len(e.Biases))
	for i, b := range e.Biases {
		biasesF32[i] = float32(b)
	}

	w.writeF32Slice(fieldEnsembleBiases, biasesF32)

	classTreesBuf := &modelWriter{}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.ClassTrees)))
	classTreesBuf.buf.Write(lenBuf[:])

	for _, roundTrees := range e.ClassTrees {
		roundBuf := &modelWriter{}
		encodeTreeList(roundBuf, roundTrees)

		var rLenBuf [4]byte
		binary.LittleEndian.PutUint32(rLenBuf[:], uint32(roundBuf.buf.Len()))
		classTreesBuf.buf.Write(rLenBuf[:])
		classTreesBuf.buf.Write(roundBuf.buf.Bytes())
	}

	w.writeBytes(fieldEnsembleClassTrees, classTreesBuf.buf.Bytes())

	return w.buf.Bytes()
}

func encodeTreeList(w *modelWriter, trees []*Tree) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(trees)))
	w.buf.Write(lenBuf[:])

	for _, t := range trees {
		nodeBuf := encodeTree(t)

		var nLenBuf [4]byte
		binary.LittleEndian.PutUint32(nLenBuf[:], uint32(len(nodeBuf)))
		w.buf.Write(nLenBuf[:])
		w.buf.Write(nodeBuf)
	}
}

// encodeTree serializes a Tree's node array as a fixed-layout record per
// node (no field ids inside -- the node shape is part of the revision's
// contract, not independently evolvable), matching spec.md §3's dense
// forward-indexed array.
func encodeTree(t *Tree) []byte {
	var buf bytes.Buffer

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(t.Nodes)))
	buf.Write(lenBuf[:])

	for _, n := range t.Nodes {
		var isLeaf byte
		if n.IsLeaf {
			isLeaf = 1
		}

		buf.WriteByte(isLeaf)

		var f32Buf [4]byte

		binary.LittleEndian.PutUint32(f32Buf[:], math.Float32bits(float32(n.Value)))
		buf.Write(f32Buf[:])

		binary.LittleEndian.PutUint32(f32Buf[:], math.Float32bits(float32(n.ExamplesFraction)))
		buf.Write(f32Buf[:])

		var u32Buf [4]byte

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.LeftIdx))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.RightIdx))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.Split.Kind))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.Split.FeatureIdx))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.Split.BinIndex))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.Split.InvalidDirectionCont))
		buf.Write(u32Buf[:])

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(n.Split.InvalidDirectionDiscrete))
		buf.Write(u32Buf[:])

		variants := make([]uint32, 0, len(n.Split.LeftVariants))
		for v := range n.Split.LeftVariants {
			variants = append(variants, v)
		}

		binary.LittleEndian.PutUint32(u32Buf[:], uint32(len(variants)))
		buf.Write(u32Buf[:])

		for _, v := range variants {
			binary.LittleEndian.PutUint32(u32Buf[:], v)
			buf.Write(u32Buf[:])
		}
	}

	return buf.Bytes()
}

const (
	fieldLinearKind      = 1
	fieldLinearNFeatures = 2
	fieldLinearNOutputs  = 3
	fieldLinearMeans     = 4
	fieldLinearBias      = 5
	fieldLinearWeights   = 6
)

func serializeLinearModel(m *LinearModel) []byte {
	w := &modelWriter{}

	w.writeU32(fieldLinearKind, uint32(m.Kind))
	w.writeU32(fieldLinearNFeatures, uint32(m.NFeatures))
	w.writeU32(fieldLinearNOutputs, uint32(m.NOutputs))

	means32 := make([]float32, len(m.FeatureMeans))
	for i, v := range m.FeatureMeans {
		means32[i] = float32(v)
	}

	w.writeF32Slice(fieldLinearMeans, means32)

	bias32 := make([]float32, len(m.Bias))
	for i, v := range m.Bias {
		bias32[i] = float32(v)
	}

	w.writeF32Slice(fieldLinearBias, bias32)

	flatWeights := make([]float32, 0, m.NFeatures*m.NOutputs)
	for _, row := range m.Weights {
		for _, v := range row {
			flatWeights = append(flatWeights, float32(v))
		}
	}

	w.writeF32Slice(fieldLinearWeights, flatWeights)

	return w.buf.Bytes()
}

// modelReader walks a field-id-tagged buffer, per spec.md §6: "unknown ids
// are skipped".
type modelReader struct {
	data []byte
	pos  int
}

func (r *modelReader) eof() bool { return r.pos >= len(r.data) }

func (r *modelReader) readU32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, WrapperKind(KindFormat, ErrModelFile, "truncated u32")
	}

	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4

	return v, nil
}

func (r *modelReader) readF32() (float32, error) {
	v, err := r.readU32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

func (r *modelReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, WrapperKind(KindFormat, ErrModelFile, "truncated field")
	}

	b := r.data[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

func (r *modelReader) readLengthPrefixed() ([]byte, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	return r.readBytes(int(n))
}

func (r *modelReader) readString() (string, error) {
	b, err := r.readLengthPrefixed()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (r *modelReader) readF32Slice() ([]float32, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	out := make([]float32, n)

	for i := range out {
		out[i], err = r.readF32()
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// DeserializeModel decodes bytes produced by SerializeModel, rejecting bad
// magic or out-of-range revisions per spec.md §6/§7.
func DeserializeModel(data []byte) (*Model, error) {
	if len(data) < 12 {
		return nil, WrapperKind(KindFormat, ErrModelFile, "file too short")
	}

	if !bytes.Equal(data[:8], magic[:]) {
		return nil, WrapperKind(KindFormat, ErrModelFile, "bad magic")
	}

	revision := binary.LittleEndian.Uint32(data[8:12])

	if revision > CurrentRevision {
		return nil, WrapperKind(KindFormat, ErrModelFile, "unsupported revision: future model")
	}

	if revision < MinSupportedRevision {
		return nil, WrapperKind(KindFormat, ErrModelFile, "unsupported revision: ancient model")
	}

	r := &modelReader{data: data, pos: 12}
	m := &Model{}

	for !r.eof() {
		id, err := r.readU32()
		if err != nil {
			return nil, err
		}

		switch id {
		case fieldModelID:
			m.ID, err = r.readString()
		case fieldModelSemver:
			m.Semver, err = r.readString()
		case fieldModelDate:
			m.Date, err = r.readString()
		case fieldModelInner:
			var raw []byte

			raw, err = r.readLengthPrefixed()
			if err == nil {
				m.Inner, err = deserializeModelInner(raw)
			}
		default:
			// unknown field id: skip past its length-prefixed payload, per
			// spec.md §6's forward-compatibility rule.
			_, err = r.readLengthPrefixed()
		}

		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func deserializeModelInner(data []byte) (*ModelInner, error) {
	r := &modelReader{data: data}
	inner := &ModelInner{}

	for !r.eof() {
		id, err := r.readU32()
		if err != nil {
			return nil, err
		}

		switch id {
		case fieldInnerTask:
			var v uint32
			v, err = r.readU32()
			inner.Task = Task(v)
		case fieldInnerLearner:
			var v uint32
			v, err = r.readU32()
			inner.Learner = LearnerKind(v)
		case fieldInnerNClasses:
			var v uint32
			v, err = r.readU32()
			inner.NClasses = int(v)
		case fieldInnerEnsemble:
			var raw []byte
			raw, err = r.readLengthPrefixed()
			if err == nil {
				inner.Ensemble, err = deserializeEnsemble(raw)
			}
		case fieldInnerLinear:
			var raw []byte
			raw, err = r.readLengthPrefixed()
			if err == nil {
				inner.Linear, err = deserializeLinearModel(raw)
			}
		default:
			_, err = r.readLengthPrefixed()
		}

		if err != nil {
			return nil, err
		}
	}

	return inner, nil
}

func deserializeEnsemble(data []byte) (*Ensemble, error) {
	r := &modelReader{data: data}
	e := &Ensemble{}

	for !r.eof() {
		id, err := r.readU32()
		if err != nil {
			return nil, err
		}

		switch id {
		case fieldEnsembleKind:
			var v uint32
			v, err = r.readU32()
			e.Kind = EnsembleKind(v)
		case fieldEnsembleBias:
			var v float32
			v, err = r.readF32()
			e.Bias = float64(v)
		case fieldEnsembleTrees:
			var raw []byte
			raw, err = r.readLengthPrefixed()
			if err == nil {
				e.Trees, err = decodeTreeList(raw)
			}
		case fieldEnsembleBiases:
			var v []float32
			v, err = r.readF32Slice()
			e.Biases = make([]float64, len(v))
			for i, f := range v {
				e.Biases[i] = float64(f)
			}
		case fieldEnsembleClassTrees:
			var raw []byte
			raw, err = r.readLengthPrefixed()
			if err == nil {
				e.ClassTrees, err = decodeClassTrees(raw)
			}
		default:
			_, err = r.readLengthPrefixed()
		}

		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

func decodeTreeList(data []byte) ([]*Tree, error) {
	r := &modelReader{data: data}

	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	trees := make([]*Tree, n)

	for i := range trees {
		raw, err := r.readLengthPrefixed()
		if err != nil {
			return nil, err
		}

		t, err := decodeTree(raw)
		if err != nil {
			return nil, err
		}

		trees[i] = t
	}

	return trees, nil
}

func decodeClassTrees(data []byte) ([][]*Tree, error) {
	r := &modelReader{data: data}

	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	out := make([][]*Tree, n)

	for i := range out {
		raw, err := r.readLengthPrefixed()
		if err != nil {
			return nil, err
		}

		trees, err := decodeTreeList(raw)
		if err != nil {
			return nil, err
		}

		out[i] = trees
	}

	return out, nil
}

func decodeTree(data []byte) (*Tree, error) {
	r := &modelReader{data: data}

	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, n)

	for i := range nodes {
		isLeafByte, err := r.readBytes(1)
		if err != nil {
			return nil, err
		}

		value, err := r.readF32()
		if err != nil {
			return nil, err
		}

		fraction, err := r.readF32()
		if err != nil {
			return nil, err
		}

		leftIdx, err := r.readU32()
		if err != nil {
			return nil, err
		}

		rightIdx, err := r.readU32()
		if err != nil {
			return nil, err
		}

		splitKind, err := r.readU32()
		if err != nil {
			return nil, err
		}

		featIdx, err := r.readU32()
		if err != nil {
			return nil, err
		}

		binIdx, err := r.readU32()
		if err != nil {
			return nil, err
		}

		invCont, err := r.readU32()
		if err != nil {
			return nil, err
		}

		invDisc, err := r.readU32()
		if err != nil {
			return nil, err
		}

		nVariants, err := r.readU32()
		if err != nil {
			return nil, err
		}

		leftVariants := make(map[uint32]bool, nVariants)

		for k := uint32(0); k < nVariants; k++ {
			v, err := r.readU32()
			if err != nil {
				return nil, err
			}

			leftVariants[v] = true
		}

		nodes[i] = Node{
			IsLeaf:           isLeafByte[0] == 1,
			Value:            float64(value),
			ExamplesFraction: float64(fraction),
			LeftIdx:          int(leftIdx),
			RightIdx:         int(rightIdx),
			Split: Split{
				Kind:                     SplitKind(splitKind),
				FeatureIdx:               int(featIdx),
				BinIndex:                 int(binIdx),
				InvalidDirectionCont:     SplitDirection(invCont),
				InvalidDirectionDiscrete: SplitDirection(invDisc),
				LeftVariants:             leftVariants,
			},
		}
	}

	return &Tree{Nodes: nodes}, nil
}

func deserializeLinearModel(data []byte) (*LinearModel, error) {
	r := &modelReader{data: data}
	m := &LinearModel{}

	var weightsFlat []float32

	for !r.eof() {
		id, err := r.readU32()
		if err != nil {
			return nil, err
		}

		switch id {
		case fieldLinearKind:
			var v uint32
			v, err = r.readU32()
			m.Kind = EnsembleKind(v)
		case fieldLinearNFeatures:
			var v uint32
			v, err = r.readU32()
			m.NFeatures = int(v)
		case fieldLinearNOutputs:
			var v uint32
			v, err = r.readU32()
			m.NOutputs = int(v)
		case fieldLinearMeans:
			var v []float32
			v, err = r.readF32Slice()
			m.FeatureMeans = make([]float64, len(v))
			for i, f := range v {
				m.FeatureMeans[i] = float64(f)
			}
		case fieldLinearBias:
			var v []float32
			v, err = r.readF32Slice()
			m.Bias = make([]float64, len(v))
			for i, f := range v {
				m.Bias[i] = float64(f)
			}
		case fieldLinearWeights:
			weightsFlat, err = r.readF32Slice()
		default:
			_, err = r.readLengthPrefixed()
		}

		if err != nil {
			return nil, err
		}
	}

	if m.NFeatures > 0 && m.NOutputs > 0 {
		m.Weights = make([][]float64, m.NFeatures)

		for i := 0; i < m.NFeatures; i++ {
			row := make([]float64, m.NOutputs)

			for c := 0; c < m.NOutputs; c++ {
				idx := i*m.NOutputs + c
				if idx < len(weightsFlat) {
					row[c] = float64(weightsFlat[idx])
				}
			}

			m.Weights[i] = row
		}
	}

	return m, nil
}
