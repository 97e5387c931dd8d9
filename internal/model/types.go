package model

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// CurrentVersion is the header stamped on records written by this build.
func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// Genome is the structural description of one CPPN: an ordered node list and
// an ordered connection list, enough to rebuild an identical genome.
type Genome struct {
	VersionedRecord
	ID        string       `json:"id"`
	Nodes     []Node       `json:"nodes"`
	Conns     []Connection `json:"connections"`
	Fitness   *float64     `json:"fitness,omitempty"`
	Novelty   *float64     `json:"novelty,omitempty"`
	SpeciesID int          `json:"species_id,omitempty"`
	ParentIDs []string     `json:"parent_ids,omitempty"`
}

type Node struct {
	ID         int    `json:"id"`
	Type       string `json:"type"`
	Layer      int    `json:"layer"`
	Activation string `json:"activation"`
}

type Connection struct {
	Innovation int     `json:"innovation"`
	From       int     `json:"from"`
	To         int     `json:"to"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
}

// ArchiveCell is one occupied MAP-Elites cell.
type ArchiveCell struct {
	VersionedRecord
	Index      int                `json:"index"`
	Coords     []int              `json:"coords"`
	VotingFns  []string           `json:"voting_fns"`
	Scores     map[string]float64 `json:"scores"`
	Descriptor []float64          `json:"descriptor"`
	Genome     Genome             `json:"genome"`
}

type Run struct {
	VersionedRecord
	ID           string  `json:"id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         int64   `json:"seed"`
	Population   int     `json:"population"`
	Generations  int     `json:"generations"`
	Config       string  `json:"config"`
	BestGenomeID string  `json:"best_genome_id,omitempty"`
	BestFitness  float64 `json:"best_fitness"`
}

type GenerationDiagnostics struct {
	Generation          int     `json:"generation"`
	BestFitness         float64 `json:"best_fitness"`
	MeanFitness         float64 `json:"mean_fitness"`
	MinFitness          float64 `json:"min_fitness"`
	MeanNovelty         float64 `json:"mean_novelty"`
	FitnessFunction     string  `json:"fitness_function"`
	SpeciesCount        int     `json:"species_count"`
	ExtinctSpecies      int     `json:"extinct_species"`
	SpeciationThreshold float64 `json:"speciation_threshold"`
	MeanConnections     float64 `json:"mean_connections"`
	MaxConnections      int     `json:"max_connections"`
	MeanHiddenNodes     float64 `json:"mean_hidden_nodes"`
	MaxHiddenNodes      int     `json:"max_hidden_nodes"`
	EvaluationFailures  int     `json:"evaluation_failures"`
	MutationNoops       int     `json:"mutation_noops"`
	ArchiveAccepted     int     `json:"archive_accepted"`
	ArchiveCoverage     float64 `json:"archive_coverage"`
	UniqueFingerprints  int     `json:"unique_fingerprints"`
}

type LineageRecord struct {
	GenomeID    string          `json:"genome_id"`
	ParentIDs   []string        `json:"parent_ids,omitempty"`
	Generation  int             `json:"generation"`
	Operation   string          `json:"operation"`
	SpeciesID   int             `json:"species_id,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Summary     TopologySummary `json:"summary"`
}

// TopologySummary is a compact structural profile of a genome.
type TopologySummary struct {
	TotalNodes             int            `json:"total_nodes"`
	HiddenNodes            int            `json:"hidden_nodes"`
	TotalConnections       int            `json:"total_connections"`
	EnabledConnections     int            `json:"enabled_connections"`
	Depth                  int            `json:"depth"`
	ActivationDistribution map[string]int `json:"activation_distribution,omitempty"`
}
