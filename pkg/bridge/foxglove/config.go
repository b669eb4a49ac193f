package foxglove

const JointsSchema = `{
  "type": "object",
  "properties": {
    "seq": { "type": "integer" },
    "ts": { "type": "string" },
    "bootstrap": { "type": "boolean" },
    "joints": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "index": { "type": "integer" },
          "name": { "type": "string" },
          "x": { "type": "number" },
          "y": { "type": "number" },
          "z": { "type": "number" }
        }
      }
    },
    "offset": { "type": "object", "additionalProperties": { "type": "number" } },
    "device": { "type": "object", "additionalProperties": { "type": "number" } }
  },
  "required": ["seq", "joints"]
}`

const MarkerSchema = `{
  "type": "object",
  "properties": {
    "header": { "type": "object" },
    "ns": { "type": "string" },
    "id": { "type": "integer" },
    "type": { "type": "integer" },
    "action": { "type": "integer" },
    "pose": { "type": "object" },
    "scale": { "type": "object" },
    "color": { "type": "object" },
    "points": { "type": "array" }
  }
}`

const TransformSchema = `{
  "type": "object",
  "properties": {
    "transforms": { "type": "array" }
  }
}`

const LogSchema = `{
  "type": "object",
  "properties": {
    "timestamp": { "type": "object" },
    "level": { "type": "integer" },
    "message": { "type": "string" },
    "name": { "type": "string" },
    "file": { "type": "string" },
    "line": { "type": "integer" }
  }
}`

// Channel ids are fixed; each topic gets its own.
const (
	JointsChannelID    uint64 = 1
	MarkerChannelID    uint64 = 2
	TransformChannelID uint64 = 3
	LogChannelID       uint64 = 4
)

type Config struct {
	WSAddr         string
	Name           string
	JointsTopic    string
	MarkerTopic    string
	TransformTopic string
	LogTopic       string
	LogName        string
	ParentFrameID  string
	FrameID        string
	SendBuf        int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:         "127.0.0.1:8765",
		Name:           "bodytrack",
		JointsTopic:    "/bodytrack/joints",
		MarkerTopic:    "/bodytrack/skeleton",
		TransformTopic: "/tf",
		LogTopic:       "/bodytrack/log",
		LogName:        "bodytrack",
		ParentFrameID:  "world",
		FrameID:        "body",
		SendBuf:        256,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.WSAddr == "" {
		cfg.WSAddr = def.WSAddr
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.JointsTopic == "" {
		cfg.JointsTopic = def.JointsTopic
	}
	if cfg.MarkerTopic == "" {
		cfg.MarkerTopic = def.MarkerTopic
	}
	if cfg.TransformTopic == "" {
		cfg.TransformTopic = def.TransformTopic
	}
	if cfg.LogTopic == "" {
		cfg.LogTopic = def.LogTopic
	}
	if cfg.LogName == "" {
		cfg.LogName = def.LogName
	}
	if cfg.ParentFrameID == "" {
		cfg.ParentFrameID = def.ParentFrameID
	}
	if cfg.FrameID == "" {
		cfg.FrameID = def.FrameID
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = def.SendBuf
	}
	return cfg
}
