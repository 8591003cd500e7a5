package schemas

// Schema urls. Snapshot schemas describe the keyed JSON snapshot codec, wire schemas the JSON
// form of registry messages.
const (
	SnapshotTrainer = "http://edl.wangxicoding.github.io/schemas/v0/snapshot/trainer.json"
	SnapshotPod     = "http://edl.wangxicoding.github.io/schemas/v0/snapshot/pod.json"
	SnapshotCluster = "http://edl.wangxicoding.github.io/schemas/v0/snapshot/cluster.json"
	SnapshotPods    = "http://edl.wangxicoding.github.io/schemas/v0/snapshot/pods.json"

	WireTrainer = "http://edl.wangxicoding.github.io/schemas/v0/wire/trainer.json"
	WirePod     = "http://edl.wangxicoding.github.io/schemas/v0/wire/pod.json"
	WireCluster = "http://edl.wangxicoding.github.io/schemas/v0/wire/cluster.json"
)

// Nested trainers and pods of a snapshot are objects, or, from older writers, strings holding
// an encoded object. Their own schema is applied once they are unwrapped.
var (
	textSnapshotTrainer = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/snapshot/trainer.json",
    "title": "Trainer",
    "type": "object",
    "required": ["id", "rank_in_pod", "gpus", "endpoint"],
    "properties": {
        "id": {"type": "string", "minLength": 1},
        "rank_in_pod": {"type": "integer", "minimum": 0},
        "global_rank": {"type": ["integer", "null"], "minimum": 0},
        "endpoint": {"type": "string", "minLength": 1},
        "gpus": {"$ref": "pod.json#/definitions/gpus"}
    }
}
`)
	textSnapshotPod = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/snapshot/pod.json",
    "title": "Pod",
    "type": "object",
    "required": ["id", "addr", "trainer_ports", "gpus", "trainers"],
    "properties": {
        "id": {"type": "string", "minLength": 1},
        "rank": {"type": ["integer", "null"], "minimum": 0},
        "addr": {"type": "string", "minLength": 1},
        "port": {"type": ["integer", "null"], "minimum": 0, "maximum": 65535},
        "trainer_ports": {
            "type": "array",
            "items": {"type": "integer", "minimum": 1, "maximum": 65535}
        },
        "gpus": {"$ref": "#/definitions/gpus"},
        "stage": {"type": ["string", "null"]},
        "trainers": {"$ref": "#/definitions/indexed"}
    },
    "definitions": {
        "gpus": {
            "type": "array",
            "items": {
                "type": ["integer", "string"],
                "minimum": 0,
                "pattern": "^(0|[1-9][0-9]*)$"
            }
        },
        "indexed": {
            "type": "object",
            "patternProperties": {
                "^(0|[1-9][0-9]*)$": {"type": ["object", "string"]}
            },
            "additionalProperties": false
        }
    }
}
`)
	textSnapshotCluster = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/snapshot/cluster.json",
    "title": "Cluster",
    "type": "object",
    "required": ["pods"],
    "properties": {
        "job_stage": {"type": ["string", "null"]},
        "pods": {"$ref": "pod.json#/definitions/indexed"}
    }
}
`)
	textSnapshotPods = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/snapshot/pods.json",
    "title": "PodMapping",
    "$ref": "pod.json#/definitions/indexed"
}
`)
	textWireTrainer = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/wire/trainer.json",
    "title": "TrainerMessage",
    "type": "object",
    "required": ["id", "rank_in_pod", "gpus", "endpoint"],
    "properties": {
        "id": {"type": "string", "minLength": 1},
        "rank_in_pod": {"$ref": "pod.json#/definitions/int32"},
        "global_rank": {"$ref": "pod.json#/definitions/optionalInt32"},
        "endpoint": {"type": "string", "minLength": 1},
        "gpus": {"type": "array", "items": {"$ref": "pod.json#/definitions/int32"}}
    }
}
`)
	textWirePod = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/wire/pod.json",
    "title": "PodMessage",
    "type": "object",
    "required": ["id", "addr", "trainer_ports", "gpus", "trainers"],
    "properties": {
        "id": {"type": "string", "minLength": 1},
        "rank": {"$ref": "#/definitions/optionalInt32"},
        "addr": {"type": "string", "minLength": 1},
        "port": {"type": "integer", "minimum": 0, "maximum": 65535},
        "trainer_ports": {
            "type": "array",
            "items": {"type": "integer", "minimum": 1, "maximum": 65535}
        },
        "gpus": {"type": "array", "items": {"$ref": "#/definitions/int32"}},
        "stage": {"type": "string"},
        "trainers": {"type": "array", "items": {"$ref": "trainer.json"}}
    },
    "definitions": {
        "int32": {"type": "integer", "minimum": 0, "maximum": 2147483647},
        "optionalInt32": {"type": ["integer", "null"], "minimum": 0, "maximum": 2147483647}
    }
}
`)
	textWireCluster = []byte(`
{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "$id": "http://edl.wangxicoding.github.io/schemas/v0/wire/cluster.json",
    "title": "ClusterMessage",
    "type": "object",
    "required": ["pods"],
    "properties": {
        "job_stage": {"type": "string"},
        "pods": {"type": "array", "items": {"$ref": "pod.json"}}
    }
}
`)
)

var cachedSchemaBytesMap map[string][]byte

func schemaBytesMap() map[string][]byte {
	if cachedSchemaBytesMap != nil {
		return cachedSchemaBytesMap
	}
	cachedSchemaBytesMap = map[string][]byte{
		SnapshotTrainer: textSnapshotTrainer,
		SnapshotPod:     textSnapshotPod,
		SnapshotCluster: textSnapshotCluster,
		SnapshotPods:    textSnapshotPods,
		WireTrainer:     textWireTrainer,
		WirePod:         textWirePod,
		WireCluster:     textWireCluster,
	}
	return cachedSchemaBytesMap
}
