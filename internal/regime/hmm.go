package regime

import (
	"errors"
	"fmt"
	"math"

	"github.com/Alias1177/RegimeForecast/internal/artifact"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

const probTolerance = 1e-6

// hmmArtifact is the JSON export of a fitted hmmlearn GaussianHMM.
// Covars always carries the full per-state matrices, whatever the covariance type.
type hmmArtifact struct {
	NComponents    int           `json:"n_components"`
	NFeatures      int           `json:"n_features"`
	CovarianceType string        `json:"covariance_type"`
	StartProb      []float64     `json:"startprob"`
	TransMat       [][]float64   `json:"transmat"`
	Means          [][]float64   `json:"means"`
	Covars         [][][]float64 `json:"covars"`
}

// GaussianHMM is a hidden Markov model with multivariate normal emissions
type GaussianHMM struct {
	nStates   int
	nFeatures int
	logStart  []float64
	logTrans  *mat.Dense
	emissions []*distmv.Normal
}

// LoadGaussianHMM reads a fitted model export from path
func LoadGaussianHMM(path string) (*GaussianHMM, error) {
	var a hmmArtifact
	if err := artifact.LoadJSON("hmm", path, &a); err != nil {
		return nil, err
	}
	if a.NComponents != 0 && a.NComponents != len(a.StartProb) {
		return nil, fmt.Errorf("hmm artifact declares %d components but has %d start probabilities", a.NComponents, len(a.StartProb))
	}
	if a.NFeatures != 0 && len(a.Means) > 0 && a.NFeatures != len(a.Means[0]) {
		return nil, fmt.Errorf("hmm artifact declares %d features but means have %d", a.NFeatures, len(a.Means[0]))
	}

	m, err := NewGaussianHMM(a.StartProb, a.TransMat, a.Means, a.Covars)
	if err != nil {
		return nil, fmt.Errorf("hmm artifact %q: %w", path, err)
	}
	return m, nil
}

// NewGaussianHMM validates the parameters and prepares them for decoding
func NewGaussianHMM(startProb []float64, transMat [][]float64, means [][]float64, covars [][][]float64) (*GaussianHMM, error) {
	k := len(startProb)
	if k == 0 {
		return nil, errors.New("model has no states")
	}
	if !probabilityVector(startProb) {
		return nil, errors.New("startprob must be non-negative and sum to 1")
	}
	if len(transMat) != k || len(means) != k || len(covars) != k {
		return nil, fmt.Errorf("parameter shapes disagree: %d states, %d transmat rows, %d means, %d covars",
			k, len(transMat), len(means), len(covars))
	}

	logTrans := mat.NewDense(k, k, nil)
	for i, row := range transMat {
		if len(row) != k || !probabilityVector(row) {
			return nil, fmt.Errorf("transmat row %d must have %d non-negative entries summing to 1", i, k)
		}
		for j, p := range row {
			logTrans.Set(i, j, math.Log(p))
		}
	}

	nFeatures := len(means[0])
	if nFeatures == 0 {
		return nil, errors.New("means have no features")
	}

	emissions := make([]*distmv.Normal, k)
	for s := 0; s < k; s++ {
		if len(means[s]) != nFeatures {
			return nil, fmt.Errorf("state %d mean has %d features, want %d", s, len(means[s]), nFeatures)
		}
		sigma, err := symmetric(covars[s], nFeatures)
		if err != nil {
			return nil, fmt.Errorf("state %d covariance: %w", s, err)
		}
		normal, ok := distmv.NewNormal(means[s], sigma, nil)
		if !ok {
			return nil, fmt.Errorf("state %d covariance is not positive definite", s)
		}
		emissions[s] = normal
	}

	logStart := make([]float64, k)
	for i, p := range startProb {
		logStart[i] = math.Log(p)
	}

	return &GaussianHMM{
		nStates:   k,
		nFeatures: nFeatures,
		logStart:  logStart,
		logTrans:  logTrans,
		emissions: emissions,
	}, nil
}

// States returns the size of the label alphabet
func (m *GaussianHMM) States() int {
	return m.nStates
}

// Predict returns the most likely state sequence (Viterbi path) for obs,
// one label per row.
func (m *GaussianHMM) Predict(obs *mat.Dense) ([]int, error) {
	n, f := obs.Dims()
	if f != m.nFeatures {
		return nil, fmt.Errorf("observations have %d features, model expects %d", f, m.nFeatures)
	}
	if n == 0 {
		return nil, errors.New("no observations")
	}

	k := m.nStates
	delta := make([]float64, k)
	next := make([]float64, k)
	backptr := make([][]int, n)

	emit := func(t int) ([]float64, error) {
		row := obs.RawRowView(t)
		out := make([]float64, k)
		for s, e := range m.emissions {
			out[s] = e.LogProb(row)
			if math.IsNaN(out[s]) {
				return nil, fmt.Errorf("observation %d is not a number", t)
			}
		}
		return out, nil
	}

	logEmit, err := emit(0)
	if err != nil {
		return nil, err
	}
	floats.AddTo(delta, m.logStart, logEmit)

	for t := 1; t < n; t++ {
		if logEmit, err = emit(t); err != nil {
			return nil, err
		}
		backptr[t] = make([]int, k)
		for j := 0; j < k; j++ {
			best, arg := math.Inf(-1), 0
			for i := 0; i < k; i++ {
				if v := delta[i] + m.logTrans.At(i, j); v > best {
					best, arg = v, i
				}
			}
			next[j] = best + logEmit[j]
			backptr[t][j] = arg
		}
		delta, next = next, delta
	}

	path := make([]int, n)
	path[n-1] = floats.MaxIdx(delta)
	for t := n - 1; t > 0; t-- {
		path[t-1] = backptr[t][path[t]]
	}
	return path, nil
}

func probabilityVector(p []float64) bool {
	for _, v := range p {
		if v < 0 || math.IsNaN(v) {
			return false
		}
	}
	return math.Abs(floats.Sum(p)-1) <= probTolerance
}

func symmetric(rows [][]float64, n int) (*mat.SymDense, error) {
	if len(rows) != n {
		return nil, fmt.Errorf("has %d rows, want %d", len(rows), n)
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), n)
		}
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		for j := range row {
			if math.Abs(row[j]-rows[j][i]) > probTolerance*math.Max(1, math.Abs(row[j])) {
				return nil, errors.New("matrix is not symmetric")
			}
		}
		data = append(data, row...)
	}
	return mat.NewSymDense(n, data), nil
}
