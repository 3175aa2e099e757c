package studio

// wire identifiers
const (
	STUDIO_IDENT     = 0x54534449 // IDST
	STUDIO_SEQ_IDENT = 0x51534449 // IDSQ
	STUDIO_VERSION   = 10
)

// header flags
const (
	STUDIO_ROCKET          = 0x0001
	STUDIO_GRENADE         = 0x0002
	STUDIO_GIB             = 0x0004
	STUDIO_ROTATE          = 0x0008
	STUDIO_TRACER          = 0x0010
	STUDIO_ZOMBIE          = 0x0020
	STUDIO_TRACER2         = 0x0040
	STUDIO_TRACER3         = 0x0080
	STUDIO_AMBIENT_LIGHT   = 0x0100
	STUDIO_FORCE_SKYLIGHT  = 0x0200
	STUDIO_HAS_BONEINFO    = 1 << 29
	STUDIO_HAS_BONEWEIGHTS = 1 << 30
)

// bone flags
const (
	BONE_ALWAYS_PROCEDURAL     = 0x0004
	BONE_JIGGLE_PROCEDURAL     = 0x0008
	BONE_FIXED_ALIGNMENT       = 0x0010
	BONE_USED_BY_IK            = 0x0020
	BONE_SCREEN_ALIGN_SPHERE   = 0x0040
	BONE_SCREEN_ALIGN_CYLINDER = 0x0080
	BONE_USED_BY_HITBOX        = 0x0100
	BONE_USED_BY_ATTACHMENT    = 0x0200
	BONE_USED_BY_VERTEX        = 0x0400
	BONE_USED_BY_BONE_MERGE    = 0x0800
	BONE_USED_MASK             = BONE_USED_BY_HITBOX | BONE_USED_BY_ATTACHMENT | BONE_USED_BY_VERTEX | BONE_USED_BY_BONE_MERGE
)

// procedural bone kinds in the bone info table
const (
	STUDIO_PROC_NONE = iota
	STUDIO_PROC_AXISINTERP
	STUDIO_PROC_QUATINTERP
	STUDIO_PROC_AIMATBONE
	STUDIO_PROC_AIMATATTACH
	STUDIO_PROC_JIGGLE
)

// motion and bone controller channel flags
const (
	STUDIO_X                = 0x0001
	STUDIO_Y                = 0x0002
	STUDIO_Z                = 0x0004
	STUDIO_XR               = 0x0008
	STUDIO_YR               = 0x0010
	STUDIO_ZR               = 0x0020
	STUDIO_LX               = 0x0040
	STUDIO_LY               = 0x0080
	STUDIO_LZ               = 0x0100
	STUDIO_LXR              = 0x0200
	STUDIO_LYR              = 0x0400
	STUDIO_LZR              = 0x0800
	STUDIO_LINEAR           = 0x1000
	STUDIO_QUADRATIC_MOTION = 0x2000
	STUDIO_TYPES            = 0x7FFF
	STUDIO_RLOOP            = 0x8000

	STUDIO_LINEAR_MOTION_MASK = STUDIO_LX | STUDIO_LY | STUDIO_LZ | STUDIO_LXR | STUDIO_LYR | STUDIO_LZR
)

// animation and sequence flags
const (
	STUDIO_LOOPING   = 0x0001
	STUDIO_SNAP      = 0x0002
	STUDIO_DELTA     = 0x0004
	STUDIO_AUTOPLAY  = 0x0008
	STUDIO_POST      = 0x0010
	STUDIO_ALLZEROS  = 0x0020
	STUDIO_CYCLEPOSE = 0x0080
	STUDIO_REALTIME  = 0x0100
	STUDIO_LOCAL     = 0x0200
	STUDIO_HIDDEN    = 0x0400
	STUDIO_IKRULES   = 0x0800
	STUDIO_ACTIVITY  = 0x1000
	STUDIO_EVENT     = 0x2000
	STUDIO_WORLD     = 0x4000
)

// autolayer flags
const (
	STUDIO_AL_POST    = 0x0010
	STUDIO_AL_SPLINE  = 0x0040
	STUDIO_AL_XFADE   = 0x0080
	STUDIO_AL_NOBLEND = 0x0200
	STUDIO_AL_LOCAL   = 0x1000
	STUDIO_AL_POSE    = 0x4000
)

// texture flags
const (
	STUDIO_NF_FLATSHADE  = 0x0001
	STUDIO_NF_CHROME     = 0x0002
	STUDIO_NF_FULLBRIGHT = 0x0004
	STUDIO_NF_NOMIPS     = 0x0008
	STUDIO_NF_SMOOTH     = 0x0010
	STUDIO_NF_ADDITIVE   = 0x0020
	STUDIO_NF_MASKED     = 0x0040
	STUDIO_NF_ALPHASOLID = 0x0800
	STUDIO_NF_TWOSIDE    = 0x1000
	STUDIO_NF_UV_COORDS  = 1 << 31
)

// ik rule kinds
const (
	IK_SELF       = 1
	IK_WORLD      = 2
	IK_GROUND     = 3
	IK_RELEASE    = 4
	IK_ATTACHMENT = 5
	IK_UNLATCH    = 6
)

// attachment flags
const (
	ATTACHMENT_ABSOLUTE = 0x0001
	ATTACHMENT_RIGID    = 0x0002
)

// transition node flags
const (
	NODE_REVERSE = 0x0001
)

// jiggle bone flags
const (
	JIGGLE_IS_FLEXIBLE           = 0x01
	JIGGLE_IS_RIGID              = 0x02
	JIGGLE_HAS_YAW_CONSTRAINT    = 0x04
	JIGGLE_HAS_PITCH_CONSTRAINT  = 0x08
	JIGGLE_HAS_ANGLE_CONSTRAINT  = 0x10
	JIGGLE_HAS_LENGTH_CONSTRAINT = 0x20
	JIGGLE_HAS_BASE_SPRING       = 0x40
	JIGGLE_IS_BOING              = 0x80
)

var motionNames = map[string]int{
	"X": STUDIO_X, "Y": STUDIO_Y, "Z": STUDIO_Z,
	"XR": STUDIO_XR, "YR": STUDIO_YR, "ZR": STUDIO_ZR,
	"LX": STUDIO_LX, "LY": STUDIO_LY, "LZ": STUDIO_LZ,
	"LXR": STUDIO_LXR, "LYR": STUDIO_LYR, "LZR": STUDIO_LZR,
	"LM": STUDIO_LINEAR, "LQ": STUDIO_QUADRATIC_MOTION,
}

// MotionFlag resolves a motion channel name like "LX" or "ZR"
func MotionFlag(name string) (int, bool) {
	f, ok := motionNames[name]
	return f, ok
}

var ikTypeNames = map[string]int{
	"self":       IK_SELF,
	"world":      IK_WORLD,
	"ground":     IK_GROUND,
	"release":    IK_RELEASE,
	"attachment": IK_ATTACHMENT,
	"unlatch":    IK_UNLATCH,
}

var renderModes = map[string]uint32{
	"additive":     STUDIO_NF_ADDITIVE,
	"masked":       STUDIO_NF_MASKED,
	"masked_solid": STUDIO_NF_MASKED | STUDIO_NF_ALPHASOLID,
	"fullbright":   STUDIO_NF_FULLBRIGHT,
	"smooth":       STUDIO_NF_SMOOTH,
	"twoside":      STUDIO_NF_TWOSIDE,
	"flatshade":    STUDIO_NF_FLATSHADE,
	"chrome":       STUDIO_NF_CHROME,
}

// RenderMode resolves a texture render mode name to its flags
func RenderMode(name string) (uint32, bool) {
	f, ok := renderModes[name]
	return f, ok
}

func IKRuleType(name string) (int, bool) {
	t, ok := ikTypeNames[name]
	return t, ok
}
