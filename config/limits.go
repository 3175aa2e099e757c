package config

// capacity limits of the model format
const (
	MAX_BONES            = 128
	MAX_SRC_BONES        = 512
	MAX_SEQUENCES        = 2048
	MAX_ANIMATIONS       = 2048
	MAX_ANIM_FRAMES      = 2048
	MAX_MODELS           = 32
	MAX_BODYPARTS        = 32
	MAX_MESHES           = 256
	MAX_TEXTURES         = 256
	MAX_SKIN_FAMILIES    = 256
	MAX_ATTACHMENTS      = 64
	MAX_CONTROLLERS      = 8
	MAX_HITBOXES         = 512
	MAX_POSE_PARAMETERS  = 32
	MAX_IK_CHAINS        = 16
	MAX_IK_RULES         = 16
	MAX_IK_LOCKS         = 64
	MAX_MOVE_KEYS        = 16
	MAX_BONE_WEIGHTS     = 4
	MAX_EVENTS           = 1024
	MAX_AUTOLAYERS       = 64
	MAX_WEIGHTLISTS      = 128
	MAX_BLENDS           = 32
	MAX_PROCEDURAL_BONES = 64
	MAX_TRIGGERS         = 32
	MAX_NODES            = 128
	MAX_STRIP_LENGTH     = 127
	MAX_ANIMVALUE_RUN    = 255
	MAX_ANIM_BLOCK_SIZE  = 65535

	MAX_TEXTURE_SIZE    = 512
	MAX_TEXTURE_UV_SIZE = 1024
	MAX_SKIN_BYTES      = 1024*1024 + 256*3

	NAME_SIZE       = 32
	LONG_NAME_SIZE  = 64
	EVENT_OPTS_SIZE = 64
)

// Tunables. Values match what existing content was authored against.
const (
	// local pose difference (units and radians) below which a bone counts as not animated
	COLLAPSE_EPSILON = 0.01
	// how far off the local X axis a single child may sit before the parent is realigned
	REALIGN_EPSILON = 0.01
	// upper bound on the sum of absolute basis dot products after realignment
	ORTHONORMAL_EPSILON = 1e-4
	// a leg longer than this fraction of thigh+shin is treated as straight
	KNEEMAX_EPSILON = 0.9998
	IK_STRAIGHT_LEG = 0.999
	// the knee target is pushed this far past the leg length along the knee hint
	IK_KNEE_PUSH = 100.0
	// cosine of the largest angle between normals that are merged into one
	NORMAL_BLEND = 0.9993908
	// vertex positions are truncated to 1/VERTEX_PRECISION before deduplication
	VERTEX_PRECISION = 1000.0
	// source vertex weights below this are dropped before renormalisation
	MIN_BONE_WEIGHT = 0.005
	// bones weighted below this in an animation are not compressed for it
	ANIM_WEIGHT_EPSILON = 0.001
	// attachment offsets closer to zero than this are written as zero
	ATTACHMENT_JITTER = 1e-5
	// initial compression range for translation channels
	POS_RANGE = 128.0
	// quantization scale for constant channels
	CONSTANT_CHANNEL_SCALE = 1.0 / 32.0
	// automatic hitboxes thinner than this on any axis are skipped
	HITBOX_MIN_EXTENT = 1.0
	// velocities closer than this ratio are treated as constant speed
	MOTION_CONSTANT_SPEED_RATIO = 0.2
)
