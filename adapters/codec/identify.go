package codec

import "github.com/Skryldev/imagecore/core"

// identify returns a plugin that names and recognises a format but cannot
// load or save it.  Formats without a reliable signature get no validator.
func identify(i info) core.InitFunc {
	return func(p *core.Plugin, _ core.FormatID) {
		i.apply(p)
	}
}

var (
	icoInfo = info{
		format: "ICO", description: "Windows Icon", extensions: "ico",
		mime: "image/vnd.microsoft.icon", magic: []string{"\x00\x00\x01\x00"},
	}
	jngInfo = info{
		format: "JNG", description: "JPEG Network Graphics", extensions: "jng",
		mime: "image/x-mng", magic: []string{"\x8bJNG\r\n\x1a\n"},
	}
	koalaInfo = info{
		format: "KOALA", description: "C64 Koala Graphics", extensions: "koa",
		mime: "image/x-koala", magic: []string{"\x00\x60"},
	}
	iffInfo = info{
		format: "IFF", description: "IFF Interleaved Bitmap", extensions: "iff,lbm",
		mime: "image/x-iff", magic: []string{"FORM????ILBM", "FORM????PBM "},
	}
	mngInfo = info{
		format: "MNG", description: "Multiple-image Network Graphics", extensions: "mng",
		mime: "video/x-mng", magic: []string{"\x8aMNG\r\n\x1a\n"},
	}
	pcdInfo = info{
		format: "PCD", description: "Kodak PhotoCD", extensions: "pcd",
		mime: "image/x-photo-cd",
	}
	pcxInfo = info{
		format: "PCX", description: "Zsoft Paintbrush PCX bitmap", extensions: "pcx",
		mime: "image/x-pcx", magic: []string{"\x0a?\x01"},
	}
	rasInfo = info{
		format: "RAS", description: "Sun Raster Image", extensions: "ras",
		mime: "image/x-cmu-raster", magic: []string{"\x59\xa6\x6a\x95"},
	}
	targaInfo = info{
		format: "TARGA", description: "Truevision Targa", extensions: "tga,targa",
		mime: "image/x-tga",
	}
	wbmpInfo = info{
		format: "WBMP", description: "Wireless Bitmap", extensions: "wap,wbmp,wbm",
		mime: "image/vnd.wap.wbmp",
	}
	psdInfo = info{
		format: "PSD", description: "Adobe Photoshop", extensions: "psd,psb",
		mime: "image/vnd.adobe.photoshop", magic: []string{"8BPS"},
	}
	cutInfo = info{
		format: "CUT", description: "Dr. Halo", extensions: "cut",
		mime: "image/x-cut",
	}
	xbmInfo = info{
		format: "XBM", description: "X11 Bitmap Format", extensions: "xbm",
		mime: "image/x-xbitmap", magic: []string{"#define"},
	}
	xpmInfo = info{
		format: "XPM", description: "X11 Pixmap Format", extensions: "xpm",
		mime: "image/x-xpixmap", magic: []string{"/* XPM */"},
	}
	ddsInfo = info{
		format: "DDS", description: "DirectX Surface", extensions: "dds",
		mime: "image/x-dds", magic: []string{"DDS "},
	}
	hdrInfo = info{
		format: "HDR", description: "High Dynamic Range Image", extensions: "hdr",
		mime: "image/vnd.radiance", magic: []string{"#?RADIANCE", "#?RGBE"},
	}
	sgiInfo = info{
		format: "SGI", description: "SGI Image Format", extensions: "sgi,rgb,rgba,bw",
		mime: "image/x-sgi", magic: []string{"\x01\xda"},
	}
	exrInfo = info{
		format: "EXR", description: "ILM OpenEXR", extensions: "exr",
		mime: "image/x-exr", magic: []string{"\x76\x2f\x31\x01"},
	}
	j2kInfo = info{
		format: "J2K", description: "JPEG-2000 codestream", extensions: "j2k,j2c",
		mime: "image/j2k", magic: []string{"\xff\x4f\xff\x51"},
	}
	jp2Info = info{
		format: "JP2", description: "JPEG-2000 File Format", extensions: "jp2",
		mime: "image/jp2", magic: []string{"\x00\x00\x00\x0cjP  \r\n\x87\n"},
	}
	pfmInfo = info{
		format: "PFM", description: "Portable floatmap", extensions: "pfm",
		mime: "image/x-portable-floatmap", magic: []string{"PF", "Pf"},
	}
	pictInfo = info{
		format: "PICT", description: "Macintosh PICT", extensions: "pct,pict,pic",
		mime: "image/x-pict",
	}
	rawInfo = info{
		format: "RAW", description: "RAW camera image",
		extensions: "3fr,arw,bay,bmq,cap,cine,cr2,crw,cs1,dc2,dcr,drf,dsc,dng,erf,fff,ia,iiq," +
			"k25,kc2,kdc,mdc,mef,mos,mrw,nef,nrw,orf,pef,ptx,pxn,qtk,raf,raw,rdc,rw2,rwl,rwz," +
			"sr2,srf,srw,sti,x3f",
		mime: "image/x-dcraw",
	}
	jxrInfo = info{
		format: "JXR", description: "JPEG XR image format", extensions: "jxr,wdp,hdp",
		mime: "image/vnd.ms-photo", magic: []string{"II\xbc"},
	}
)
